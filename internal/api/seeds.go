package api

import "exo/internal/loopir"

// seedAxpy2D builds the two-dimensional scaled-accumulate kernel the
// split_and_reorder script schedules.
func seedAxpy2D() *loopir.Proc {
	const n, m = 8, 10
	return loopir.NewProc("axpy2d", []loopir.Arg{
		loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(n))),
		loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(m))),
		loopir.A("C", loopir.Array(loopir.TypeF32, loopir.CI(n), loopir.CI(m))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(n),
			loopir.ForAllS("j", loopir.CI(m),
				loopir.ReduceS("C", []loopir.Expr{loopir.RD("i"), loopir.RD("j")},
					loopir.Mul(loopir.RD("A", loopir.RD("i")), loopir.RD("B", loopir.RD("j")))))),
	})
}

// seedRankKReduce builds the rank-k matrix product kernel the
// rankk_reduce_staging script schedules.
func seedRankKReduce() *loopir.Proc {
	const ni, nj, nk = 6, 16, 8
	return loopir.NewProc("rankk", []loopir.Arg{
		loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(ni), loopir.CI(nk))),
		loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(nk), loopir.CI(nj))),
		loopir.A("C", loopir.Array(loopir.TypeF32, loopir.CI(ni), loopir.CI(nj))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("k", loopir.CI(nk),
			loopir.ForAllS("i", loopir.CI(ni),
				loopir.ForAllS("j", loopir.CI(nj),
					loopir.ReduceS("C", []loopir.Expr{loopir.RD("i"), loopir.RD("j")},
						loopir.Mul(loopir.RD("A", loopir.RD("i"), loopir.RD("k")), loopir.RD("B", loopir.RD("k"), loopir.RD("j"))))))),
	})
}

package api

import "exo/internal/loopir"

// Script is a named, compiled-in scheduling session: a sequence of steps
// run in order against the Procedure returned by Seed. Each step receives
// the procedure produced by the previous one (the session's starting
// point on the first call) and returns the next one plus a label for
// progress output.
type Script struct {
	Name string
	Seed func() *loopir.Proc
	Steps []func(*Procedure) (*Procedure, string, error)
}

// scripts is the registry cmd/exo-cli resolves its positional argument
// against. A script is plain Go, not a second parsed language: every step
// is a closure calling straight into a Procedure method.
var scripts = map[string]*Script{}

// RegisterScript adds s to the registry under s.Name, overwriting any
// previous script of the same name.
func RegisterScript(s *Script) {
	scripts[s.Name] = s
}

// LookupScript resolves a script by name.
func LookupScript(name string) (*Script, bool) {
	s, ok := scripts[name]
	return s, ok
}

// ScriptNames lists every registered script name.
func ScriptNames() []string {
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterScript(&Script{
		Name: "split_and_reorder",
		Seed: seedAxpy2D,
		Steps: []func(*Procedure) (*Procedure, string, error){
			func(pr *Procedure) (*Procedure, string, error) {
				loop, err := pr.Find("for j in _: _")
				if err != nil {
					return nil, "", err
				}
				next, err := pr.DivideLoop(loop, 4, "jo", "ji", "guard", false)
				return next, "divide_loop(j, 4)", err
			},
			func(pr *Procedure) (*Procedure, string, error) {
				loop, err := pr.Find("for i in _: _")
				if err != nil {
					return nil, "", err
				}
				next, err := pr.ReorderLoops(loop)
				return next, "reorder_loops(i)", err
			},
		},
	})

	RegisterScript(&Script{
		Name: "rankk_reduce_staging",
		Seed: seedRankKReduce,
		Steps: []func(*Procedure) (*Procedure, string, error){
			func(pr *Procedure) (*Procedure, string, error) {
				loop, err := pr.Find("for j in _: _")
				if err != nil {
					return nil, "", err
				}
				next, err := pr.DivideLoop(loop, 4, "jo", "ji", "cut", true)
				return next, "divide_loop(j, 4)", err
			},
			func(pr *Procedure) (*Procedure, string, error) {
				loop, err := pr.Find("for k in _: _")
				if err != nil {
					return nil, "", err
				}
				win := &loopir.WindowExpr{Name: "C", WAccess: []loopir.WAccess{
					loopir.Interval{Lo: loopir.CI(0), Hi: loopir.CI(6)},
					loopir.Interval{Lo: loopir.CI(0), Hi: loopir.CI(16)},
				}}
				next, err := pr.StageMem(loop, win, "C_reg", false)
				return next, "stage_mem(k, C_reg)", err
			},
			func(pr *Procedure) (*Procedure, string, error) {
				next, err := pr.Simplify()
				return next, "simplify()", err
			},
		},
	})
}

package pyast

// SetContext marks a binding target and the targets nested in it with
// ctx. Attribute owners and subscript indexes keep their Load context.
func SetContext(x Expr, ctx Context) {
	switch x := x.(type) {
	case *Name:
		x.Ctx = ctx
	case *Attribute:
		x.Ctx = ctx
	case *Subscript:
		x.Ctx = ctx
	case *Starred:
		x.Ctx = ctx
		SetContext(x.Value, ctx)
	case *List:
		x.Ctx = ctx
		for _, e := range x.Elts {
			SetContext(e, ctx)
		}
	case *Tuple:
		x.Ctx = ctx
		for _, e := range x.Elts {
			SetContext(e, ctx)
		}
	}
}

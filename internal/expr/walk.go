package expr

// Walk visits e and its descendants depth-first, parents before children.
// Returning false from fn skips the children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *BinaryExpr:
		Walk(n.left, fn)
		Walk(n.right, fn)
	case *UnaryExpr:
		Walk(n.operand, fn)
	case *AggregationExpr:
		Walk(n.arg, fn)
	case *AliasExpr:
		Walk(n.arg, fn)
	}
}

// Columns lists the distinct column names referenced by e in first-seen order.
func Columns(e Expr) []string {
	var names []string
	seen := make(map[string]struct{})
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*ColumnExpr); ok {
			if _, dup := seen[c.name]; !dup {
				seen[c.name] = struct{}{}
				names = append(names, c.name)
			}
		}
		return true
	})
	return names
}

// HasAggregate reports whether any node of e is an aggregate.
func HasAggregate(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if n.Kind() == KindAggregate {
			found = true
		}
		return !found
	})
	return found
}

// OutputName is the column name an expression produces in a result: the
// alias if present, else the column it reads directly, else its rendering.
func OutputName(e Expr) string {
	switch n := e.(type) {
	case *AliasExpr:
		return n.name
	case *ColumnExpr:
		return n.name
	case *AggregationExpr:
		if c, ok := n.arg.(*ColumnExpr); ok {
			return c.name
		}
	}
	return str(e)
}

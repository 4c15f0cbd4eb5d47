package expr

import "github.com/xhub/rhpgo/ridx"

// ToNode folds a Body's linear part and nonlinear tree into a single
// expression-tree Node (without the constant, which is owned by the
// equation, not the body). Used wherever a body needs to be embedded as a
// subexpression of a larger tree — e.g. FOOC's normal-cone step multiplies
// a constraint's derivative body by its multiplier variable, which is only
// expressible as a MUL node once the derivative is a single Node.
func (b *Body) ToNode(pool *ConstPool) *Node {
	if b == nil {
		return nil
	}
	var parts []*Node
	if b.Lin != nil {
		b.Lin.Iterate(func(vi ridx.Idx, coeff float64) {
			parts = append(parts, Var(vi, coeff, pool))
		})
	}
	if b.Tree != nil {
		parts = append(parts, b.Tree)
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		sum := Arithm(OpAdd, len(parts))
		for _, p := range parts {
			mustAddChild(sum, p)
		}
		return sum
	}
}

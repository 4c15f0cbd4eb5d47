package ctr

import (
	"github.com/xhub/rhpgo/rhperr"
	"github.com/xhub/rhpgo/ridx"
)

// CheckMetadata walks every active variable/equation and records a
// violation for each broken §3.6 invariant: a missing owning MP, an
// asymmetric or out-of-bounds perp pairing, a pairing whose (type, role)
// combination is not (Dual, Constraint) or (Primal, ViFunction), or an
// Objective entity carrying a dual. It is intentionally a "collect all,
// return first" check, not a fail-fast one (spec.md §7).
func (c *Container) CheckMetadata() error {
	var mc rhperr.MultiCheck
	for i := 0; i < len(c.vars); i++ {
		if !c.varActive[i] {
			continue
		}
		vm := &c.varMeta[i]
		if !vm.MpId.Valid() {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "variable %d has no owning MP", i))
		}
		if vm.Type == MetaObjective && vm.Dual.Valid() {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "objective variable %d must not have a dual equation", i))
		}
		if !vm.Dual.Valid() {
			continue
		}
		if vm.Dual.Int() >= len(c.equs) {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "variable %d paired with out-of-bounds equation %v", i, vm.Dual))
			continue
		}
		em := &c.equMeta[vm.Dual.Int()]
		if em.Dual != ridx.FromInt(i) {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "asymmetric pairing: variable %d -> equation %v -> variable %v", i, vm.Dual, em.Dual))
			continue
		}
		validPair := (vm.Type == MetaDual && em.Role == RoleConstraint) ||
			(vm.Type == MetaPrimal && em.Role == RoleViFunction) ||
			(vm.Type == MetaPrimal && em.Role == RoleIsMap)
		if !validPair {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "pair (%d, %v) typed (%d, %d), want (Dual, Constraint) or (Primal, ViFunction)", i, vm.Dual, vm.Type, em.Role))
		}
	}
	for i := 0; i < len(c.equs); i++ {
		if !c.equActive[i] {
			continue
		}
		em := &c.equMeta[i]
		if !em.MpId.Valid() {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "equation %d has no owning MP", i))
		}
		if em.Role == RoleObjective && em.Dual.Valid() {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "objective equation %d must not have a dual variable", i))
		}
		if em.Dual.Valid() && em.Dual.Int() >= len(c.vars) {
			mc.Add(rhperr.New(rhperr.ModelIncompleteMetadata, "ctr.CheckMetadata", "equation %d paired with out-of-bounds variable %v", i, em.Dual))
		}
	}
	return mc.First()
}

// Package family implements operations whose blast radius is a schedule
// plus its recurrence siblings.
//
// A family is every schedule whose AnchorID equals the anchor's ID, the
// anchor included. Once expanded, a family is a flat set of independent
// schedules: rescheduling or changing the rule of one member never
// regenerates the others.
//
// Family-wide deletes and the FamilyInfo lookup run inside one
// core.Repository.Atomic unit, so the count FamilyInfo reports is the count
// DeleteFamily removes:
//
//	info, _ := coord.FamilyInfo(ctx, id)
//	res, err := coord.DeleteFamily(ctx, id, core.ScopeFamily,
//		family.ExpectMembers(info.SiblingCount+1))
//
// Status changes across a family are issued as repeated single-schedule
// transitions through the lifecycle state machine.
package family

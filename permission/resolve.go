package permission

// Resolve merges role defaults, group rules and direct rules into the
// effective matrix at ctx. Priority is direct > group > role; within a layer
// the most specific covering context wins.
func Resolve(role Role, groupRules, directRules []Rule, ctx Context) Matrix {
	defaults := catalog[role]
	groups := selectRules(groupRules, ctx, "")
	direct := selectRules(directRules, ctx, "")

	m := Matrix{Context: ctx, Role: role, Decisions: make(map[Key]Decision, len(allKeys))}
	for _, k := range allKeys {
		m.Decisions[k] = decide(role, defaults.Has(k), groups, direct, ctx, k)
	}
	return m
}

// Decide evaluates a single key without building the full matrix. Unknown
// keys are denied.
func Decide(role Role, groupRules, directRules []Rule, ctx Context, key Key) Decision {
	if !key.Valid() {
		return Decision{Key: key, Source: SourceRole, SourceName: string(role), Context: ctx}
	}
	groups := selectRules(groupRules, ctx, key)
	direct := selectRules(directRules, ctx, key)
	return decide(role, catalog[role].Has(key), groups, direct, ctx, key)
}

func decide(role Role, roleDefault bool, groups, direct map[Key]Rule, ctx Context, k Key) Decision {
	if r, ok := direct[k]; ok {
		return fromRule(r)
	}
	if r, ok := groups[k]; ok {
		return fromRule(r)
	}
	return Decision{
		Key:        k,
		Allowed:    roleDefault,
		Source:     SourceRole,
		SourceName: string(role),
		Context:    ctx,
	}
}

func fromRule(r Rule) Decision {
	return Decision{
		Key:        r.Key,
		Allowed:    r.Allowed,
		Source:     r.Source,
		SourceID:   r.SourceID,
		SourceName: r.SourceName,
		Context:    r.Context,
	}
}

// selectRules keeps, per key, the winning rule among those covering ctx.
// When only is set, other keys are skipped.
func selectRules(rules []Rule, ctx Context, only Key) map[Key]Rule {
	out := make(map[Key]Rule)
	for _, r := range rules {
		if only != "" && r.Key != only {
			continue
		}
		if !r.Key.Valid() || !ctx.Covers(r.Context) {
			continue
		}
		if cur, ok := out[r.Key]; !ok || outranks(r, cur) {
			out[r.Key] = r
		}
	}
	return out
}

// outranks orders candidates: more specific context, then most recently
// updated, then deny over allow, then lowest source id.
func outranks(a, b Rule) bool {
	if as, bs := a.Context.Type.Specificity(), b.Context.Type.Specificity(); as != bs {
		return as > bs
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	if a.Allowed != b.Allowed {
		return !a.Allowed
	}
	return a.SourceID < b.SourceID
}

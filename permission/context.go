package permission

import (
	"strings"

	"github.com/edportal/portal-iam/errors"
)

// ContextType is the scope level a rule or request applies at.
type ContextType string

const (
	ContextGlobal      ContextType = "global"
	ContextInstitution ContextType = "institution"
	ContextSchool      ContextType = "school"
)

// ParseContextType accepts the lower-case names. Empty means global.
func ParseContextType(s string) (ContextType, bool) {
	switch ContextType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ContextGlobal:
		return ContextGlobal, true
	case ContextInstitution:
		return ContextInstitution, true
	case ContextSchool:
		return ContextSchool, true
	}
	return "", false
}

// Specificity ranks school > institution > global.
func (t ContextType) Specificity() int {
	switch t {
	case ContextSchool:
		return 2
	case ContextInstitution:
		return 1
	default:
		return 0
	}
}

// Context identifies where a decision applies. InstitutionID is only
// meaningful for school contexts and names the school's parent.
type Context struct {
	Type          ContextType `json:"type"`
	ID            string      `json:"id,omitempty"`
	InstitutionID string      `json:"institution_id,omitempty"`
}

func Global() Context { return Context{Type: ContextGlobal} }

func InstitutionContext(id string) Context {
	return Context{Type: ContextInstitution, ID: id}
}

// SchoolContext builds a school context. institutionID may be empty when the
// caller does not know the parent yet.
func SchoolContext(id, institutionID string) Context {
	return Context{Type: ContextSchool, ID: id, InstitutionID: institutionID}
}

// NewContext parses a (type, id) pair as stored in context_type/context_id columns.
func NewContext(contextType, id string) (Context, error) {
	t, ok := ParseContextType(contextType)
	if !ok {
		return Context{}, errors.Validation("context_type", "must be one of global, institution, school")
	}
	c := Context{Type: t, ID: strings.TrimSpace(id)}
	if t == ContextGlobal {
		c.ID = ""
	}
	return c, c.Validate()
}

// Validate fails with ErrValidation when an institution or school context has no id.
func (c Context) Validate() error {
	switch c.Type {
	case ContextGlobal:
		return nil
	case ContextInstitution, ContextSchool:
		if strings.TrimSpace(c.ID) == "" {
			return errors.Validation("context_id", "is required for "+string(c.Type)+" context")
		}
		return nil
	default:
		return errors.Validation("context_type", "must be one of global, institution, school")
	}
}

// Parent returns the enclosing context. A school whose institution is unknown
// parents straight to global.
func (c Context) Parent() (Context, bool) {
	switch c.Type {
	case ContextSchool:
		if c.InstitutionID != "" {
			return InstitutionContext(c.InstitutionID), true
		}
		return Global(), true
	case ContextInstitution:
		return Global(), true
	default:
		return Context{}, false
	}
}

// Lineage lists c and all its ancestors, most specific first.
func (c Context) Lineage() []Context {
	out := []Context{c}
	for cur, ok := c.Parent(); ok; cur, ok = cur.Parent() {
		out = append(out, cur)
	}
	return out
}

// Covers reports whether a rule stored at rule applies to a request at c.
func (c Context) Covers(rule Context) bool {
	for _, l := range c.Lineage() {
		if l.Same(rule) {
			return true
		}
	}
	return false
}

// Same compares type and id only.
func (c Context) Same(o Context) bool {
	if c.Type != o.Type {
		return false
	}
	return c.Type == ContextGlobal || c.ID == o.ID
}

func (c Context) String() string {
	if c.Type == ContextGlobal || c.Type == "" {
		return string(ContextGlobal)
	}
	return string(c.Type) + ":" + c.ID
}

package reports

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateReport = errors.New("duplicate report")
	ErrUnknownReport   = errors.New("unknown report")
)

// Registry is an ordered, name-keyed set of reports.
type Registry struct {
	order  []string
	byName map[string]Report
}

func NewRegistry(rs ...Report) (*Registry, error) {
	reg := &Registry{byName: map[string]Report{}}
	for _, r := range rs {
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) Register(report Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	name := normalizeName(report.Name())
	if name == "" {
		return errors.New("report name is required")
	}
	if r.byName == nil {
		r.byName = map[string]Report{}
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateReport, name)
	}
	r.byName[name] = report
	r.order = append(r.order, name)
	return nil
}

// Get looks a report up by name, ignoring case.
func (r *Registry) Get(name string) (Report, error) {
	if r != nil {
		if report, ok := r.byName[normalizeName(name)]; ok {
			return report, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownReport, strings.TrimSpace(name))
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) All() []Report {
	if r == nil {
		return nil
	}
	out := make([]Report, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

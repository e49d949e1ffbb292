package server

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/ASHISH26940/registrar/internal/model"
)

const noMax = math.MaxInt

// params reads optional query parameters and collects every rejection. A
// parameter that is missing or blank counts as absent.
type params struct {
	q    url.Values
	errs model.ValidationError
}

func newParams(q url.Values) *params {
	return &params{q: q}
}

func (p *params) raw(name string) (string, bool) {
	v := strings.TrimSpace(p.q.Get(name))
	return v, v != ""
}

func (p *params) str(name string) *string {
	v, ok := p.raw(name)
	if !ok {
		return nil
	}
	return &v
}

func (p *params) strOr(name, def string) string {
	if v, ok := p.raw(name); ok {
		return v
	}
	return def
}

func (p *params) float(name string, lo, hi float64) *float64 {
	v, ok := p.raw(name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.errs.Add(name, "must be a number", v)
		return nil
	}
	if f < lo {
		p.errs.Add(name, fmt.Sprintf("must be greater than or equal to %g", lo), v)
		return nil
	}
	if f > hi {
		p.errs.Add(name, fmt.Sprintf("must be less than or equal to %g", hi), v)
		return nil
	}
	return &f
}

func (p *params) int(name string, lo, hi int) *int {
	v, ok := p.raw(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs.Add(name, "must be an integer", v)
		return nil
	}
	if n < lo {
		p.errs.Add(name, fmt.Sprintf("must be greater than or equal to %d", lo), v)
		return nil
	}
	if n > hi {
		p.errs.Add(name, fmt.Sprintf("must be less than or equal to %d", hi), v)
		return nil
	}
	return &n
}

func (p *params) intOr(name string, def, lo, hi int) int {
	if n := p.int(name, lo, hi); n != nil {
		return *n
	}
	return def
}

func (p *params) err() error {
	return p.errs.OrNil()
}

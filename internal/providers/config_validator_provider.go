package providers

import (
	"github.com/gookit/validate"
	"stride/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func (v *CnfValidator) Validate() error {
	vd := validate.Struct(v.conf)
	vd.StopOnError = false
	if !vd.Validate() {
		return vd.Errors
	}
	return nil
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

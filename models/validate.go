package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is shared by the HTTP handlers and the CLI.
var Validate = validator.New()

// Clean trims the free-text fields of a NewStudent in place.
func (ns *NewStudent) Clean() {
	ns.ClassName = strings.TrimSpace(ns.ClassName)
	ns.Name = strings.TrimSpace(ns.Name)
	ns.ParentNames = strings.TrimSpace(ns.ParentNames)
	ns.ParentOcc = strings.TrimSpace(ns.ParentOcc)
	ns.Phone = strings.TrimSpace(ns.Phone)
	ns.LivingArea = strings.TrimSpace(ns.LivingArea)
}

func (ns *NewStudent) Validate() error {
	ns.Clean()
	return Validate.Struct(ns)
}

func (nr *NewReview) Validate() error {
	nr.SubjectName = strings.TrimSpace(nr.SubjectName)
	nr.ReviewDate = strings.TrimSpace(nr.ReviewDate)
	return Validate.Struct(nr)
}

func (nc *NewClass) Validate() error {
	nc.Name = strings.TrimSpace(nc.Name)
	return Validate.Struct(nc)
}

func (ns *NewSubject) Validate() error {
	ns.Name = strings.TrimSpace(ns.Name)
	return Validate.Struct(ns)
}

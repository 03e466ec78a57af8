package sim

import (
	"fmt"
	"log"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// ValidateName returns an error if the name is empty or contains white
// spaces or slashes. Names show up in logs, trace tables and monitoring
// URLs.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if strings.ContainsAny(name, " \t\n/") {
		return fmt.Errorf("name %q cannot contain spaces or slashes", name)
	}

	return nil
}

// NameMustBeValid panics if ValidateName fails.
func NameMustBeValid(name string) {
	if err := ValidateName(name); err != nil {
		log.Panic(err)
	}
}

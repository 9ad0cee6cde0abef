package itemerr

type Action int8

const (
	Unknown Action = iota
	Parse
	Augment
	Validate
	Generate
)

func (a Action) String() string {
	actions := map[Action]string{
		Unknown:  "unknown",
		Parse:    "parse",
		Augment:  "augment",
		Validate: "validate",
		Generate: "generate",
	}

	if str, ok := actions[a]; ok {
		return str
	}
	return "unknown"
}

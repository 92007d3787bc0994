package render

import "fmt"

// Phase is the coarse ordering bucket a directive belongs to.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseData
	PhaseTemplate
	PhaseContent
	PhaseFinish
)

// Rank bounds accepted by the registry.
const (
	MinRank = 0
	MaxRank = 10000
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseData:
		return "data"
	case PhaseTemplate:
		return "template"
	case PhaseContent:
		return "content"
	case PhaseFinish:
		return "finish"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) valid() bool {
	return p >= PhaseInit && p <= PhaseFinish
}

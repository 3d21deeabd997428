package models

// IdeaStatus tags the variant held by an Idea.
type IdeaStatus int

// Idea is the displayable state of a streaming idea. Text only carries meaning when Status is
// IdeaStatusContent, and an empty Text is valid content distinct from IdeaStatusLoading.
type Idea struct {
	Status IdeaStatus
	Text   string
}

// View is the page rendering selected by the access gate.
type View int

const (
	// IdeaStatusLoading means no fragment has arrived yet.
	IdeaStatusLoading IdeaStatus = iota
	// IdeaStatusContent means Text holds every fragment received so far.
	IdeaStatusContent
	// IdeaStatusAuthRequired means no credential could be obtained and no connection was made.
	IdeaStatusAuthRequired
)

// Views selected by the access gate. They are mutually exclusive.
const (
	ViewLoading View = iota
	ViewPaywall
	ViewGenerator
)

// AuthRequiredText is shown in place of content when no credential is available.
const AuthRequiredText = "Authentication required"

// LoadingIdea returns the initial state of every accumulator.
func LoadingIdea() Idea {
	return Idea{Status: IdeaStatusLoading}
}

// ContentIdea returns an Idea holding the accumulated text.
func ContentIdea(text string) Idea {
	return Idea{Status: IdeaStatusContent, Text: text}
}

// AuthRequiredIdea returns the terminal state used when no credential is available.
func AuthRequiredIdea() Idea {
	return Idea{Status: IdeaStatusAuthRequired}
}

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewPaywall:
		return "paywall"
	case ViewGenerator:
		return "generator"
	default:
		return "unknown"
	}
}

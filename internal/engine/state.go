package engine

// State is the position of a single Handle call in the turn lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateReceived     State = "received"
	StateTranslating  State = "translating"
	StateTranslated   State = "translated"
	StateExecuting    State = "executing"
	StateExecuted     State = "executed"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Fixed replies. Each failure stage has its own wording so a user (and a
// test) can tell them apart.
const (
	ApologyTranslation = "Sorry, I couldn't turn your question into a database query. Could you rephrase it?"
	ApologyExecution   = "Sorry, I couldn't run that query against the movie database."
	ApologyGeneric     = "Sorry, I had a problem putting the answer together. Please try again."
	NoResults          = "I couldn't find anything in the movie database for that question."
)

package prompt

// Kind classifies the outcome of a lifecycle operation.
type Kind int

const (
	KindOK Kind = iota
	KindUnavailable
	KindTemplateNotFound
	KindInvocationFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnavailable:
		return "unavailable"
	case KindTemplateNotFound:
		return "template_not_found"
	case KindInvocationFailed:
		return "invocation_failed"
	}
	return "unknown"
}

// Result is returned by every lifecycle operation. Text is never empty: on
// success it is the model output, otherwise a message describing the failure.
type Result struct {
	Text string
	Kind Kind
	Err  error
}

func (r Result) OK() bool { return r.Kind == KindOK }

const unavailableText = "LLM service unavailable, check configuration"

func success(text string) Result {
	return Result{Text: text, Kind: KindOK}
}

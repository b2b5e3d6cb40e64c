package domain

// Question is the first entry of a message's question section.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// IsSupported reports whether the question is the single type/class pair the proxy forwards.
func (q Question) IsSupported() bool {
	return q.Type == RRTypeA && q.Class == RRClassIN
}

// Message is the structured view of one datagram: its header and, when decoded, its
// first question.
type Message struct {
	Header   Header
	Question Question
	// QuestionEnd is the offset just past the question's type and class.
	QuestionEnd int
}

package policy

import (
	"fmt"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/domain"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/wire"
)

// Engine classifies client queries. It holds no mutable state of its own.
type Engine struct {
	codec     wire.DNSCodec
	blacklist Blacklist
	logger    log.Logger
}

type Options struct {
	Codec     wire.DNSCodec
	Blacklist Blacklist
	Logger    log.Logger
}

func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Engine{
		codec:     opts.Codec,
		blacklist: opts.Blacklist,
		logger:    logger,
	}
}

// Decide returns the verdict for one client datagram. Checks run in order and
// the first failing one wins: header sanity, question decode, type/class support,
// then the blacklist.
func (e *Engine) Decide(buf []byte) domain.Verdict {
	h, err := e.codec.DecodeHeader(buf)
	if err != nil {
		return formatError(domain.Message{}, err)
	}
	msg := domain.Message{Header: h}
	if err := checkHeader(h); err != nil {
		return formatError(msg, err)
	}

	q, end, err := e.codec.DecodeQuestion(buf)
	if err != nil {
		return formatError(msg, err)
	}
	msg.Question = q
	msg.QuestionEnd = end
	if q.Type == 0 || q.Class == 0 {
		return formatError(msg, domain.ErrZeroTypeOrClass)
	}
	if !q.IsSupported() {
		return domain.Verdict{Action: domain.ActionNotImplemented, Message: msg}
	}

	if e.blacklist != nil {
		if d := e.blacklist.Decide(q.Name); d.Blocked {
			e.logger.Debug(map[string]any{"name": q.Name, "entry": d.Entry}, "blacklist match")
			return domain.Verdict{Action: domain.ActionRefused, Message: msg, Entry: d.Entry}
		}
	}
	return domain.Verdict{Action: domain.ActionForward, Message: msg}
}

// Rewrite turns buf into the error response for v in place: same length, same
// ID, question section untouched. Forward verdicts leave buf alone.
func (e *Engine) Rewrite(buf []byte, v domain.Verdict) error {
	if v.IsForward() {
		return nil
	}
	if err := e.codec.EncodeHeaderInPlace(buf, v.Message.Header.ErrorReply(v.Action.RCode())); err != nil {
		return fmt.Errorf("rewrite %s reply: %w", v.Action, err)
	}
	return nil
}

func checkHeader(h domain.Header) error {
	switch {
	case h.Flags.Has(domain.FlagQR):
		return domain.ErrNotAQuery
	case h.Flags.Has(domain.FlagZ):
		return domain.ErrReservedBitSet
	case h.Flags.Has(domain.FlagCD):
		return domain.ErrCheckingDisabled
	case h.QDCount == 0:
		return domain.ErrNoQuestion
	case h.ANCount > 0:
		return domain.ErrUnexpectedAnswers
	}
	return nil
}

func formatError(msg domain.Message, reason error) domain.Verdict {
	return domain.Verdict{Action: domain.ActionFormatError, Message: msg, Reason: reason}
}

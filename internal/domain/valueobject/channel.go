package valueobject

import "fmt"

// Channel is the source rail a payment arrived on.
type Channel string

const (
	ChannelACH      Channel = "ach"
	ChannelWire     Channel = "wire"
	ChannelRealtime Channel = "realtime"
	ChannelCheck    Channel = "check"
	ChannelCard     Channel = "card"
	ChannelPayPal   Channel = "paypal"
	ChannelVenmo    Channel = "venmo"
	ChannelBook     Channel = "book"
)

var validChannels = map[Channel]struct{}{
	ChannelACH: {}, ChannelWire: {}, ChannelRealtime: {}, ChannelCheck: {},
	ChannelCard: {}, ChannelPayPal: {}, ChannelVenmo: {}, ChannelBook: {},
}

// NewChannel validates and returns a Channel.
func NewChannel(s string) (Channel, error) {
	c := Channel(s)
	if _, ok := validChannels[c]; !ok {
		return "", fmt.Errorf("unknown payment channel %q", s)
	}
	return c, nil
}

// Valid reports whether the channel is one of the accepted rails.
func (c Channel) Valid() bool {
	_, ok := validChannels[c]
	return ok
}

func (c Channel) String() string { return string(c) }

// CashAccount returns the asset account code debited for funds arriving on
// this channel.
func (c Channel) CashAccount() AccountCode {
	switch c {
	case ChannelACH:
		return AccountCashACH
	case ChannelWire:
		return AccountCashWire
	case ChannelCheck:
		return AccountCashCheck
	case ChannelRealtime:
		return AccountCashRealtime
	case ChannelCard, ChannelPayPal, ChannelVenmo:
		return AccountCashCard
	default:
		return AccountCashBook
	}
}

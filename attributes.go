package ice

import (
	"encoding/binary"

	"github.com/pion/stun"
)

// STUN attributes introduced by RFC 8445 16.1: PRIORITY, USE-CANDIDATE,
// ICE-CONTROLLED and ICE-CONTROLLING.

const (
	tieBreakerSize = 8 // 64 bit
	prioritySize   = 4 // 32 bit
)

type tieBreaker uint64

func (tb tieBreaker) addToAs(m *stun.Message, t stun.AttrType) error {
	v := make([]byte, tieBreakerSize)
	binary.BigEndian.PutUint64(v, uint64(tb))
	m.Add(t, v)
	return nil
}

func (tb *tieBreaker) getFromAs(m *stun.Message, t stun.AttrType) error {
	v, err := m.Get(t)
	if err != nil {
		return err
	}
	if err = stun.CheckSize(t, len(v), tieBreakerSize); err != nil {
		return err
	}
	*tb = tieBreaker(binary.BigEndian.Uint64(v))
	return nil
}

// AttrControlled represents the ICE-CONTROLLED attribute.
type AttrControlled uint64

// AddTo adds ICE-CONTROLLED attribute to message.
func (c AttrControlled) AddTo(m *stun.Message) error {
	return tieBreaker(c).addToAs(m, stun.AttrICEControlled)
}

// GetFrom decodes ICE-CONTROLLED from message.
func (c *AttrControlled) GetFrom(m *stun.Message) error {
	return (*tieBreaker)(c).getFromAs(m, stun.AttrICEControlled)
}

// AttrControlling represents the ICE-CONTROLLING attribute.
type AttrControlling uint64

// AddTo adds ICE-CONTROLLING attribute to message.
func (c AttrControlling) AddTo(m *stun.Message) error {
	return tieBreaker(c).addToAs(m, stun.AttrICEControlling)
}

// GetFrom decodes ICE-CONTROLLING from message.
func (c *AttrControlling) GetFrom(m *stun.Message) error {
	return (*tieBreaker)(c).getFromAs(m, stun.AttrICEControlling)
}

// AttrControl carries the agent role and tie-breaker as whichever of the two
// control attributes matches the role.
type AttrControl struct {
	Role       Role
	Tiebreaker uint64
}

// AddTo adds the relevant control attribute to the message.
func (c AttrControl) AddTo(m *stun.Message) error {
	if c.Role == RoleControlling {
		return tieBreaker(c.Tiebreaker).addToAs(m, stun.AttrICEControlling)
	}
	return tieBreaker(c.Tiebreaker).addToAs(m, stun.AttrICEControlled)
}

// GetFrom decodes whichever control attribute is present.
func (c *AttrControl) GetFrom(m *stun.Message) error {
	if m.Contains(stun.AttrICEControlling) {
		c.Role = RoleControlling
		return (*tieBreaker)(&c.Tiebreaker).getFromAs(m, stun.AttrICEControlling)
	}
	if m.Contains(stun.AttrICEControlled) {
		c.Role = RoleControlled
		return (*tieBreaker)(&c.Tiebreaker).getFromAs(m, stun.AttrICEControlled)
	}
	return stun.ErrAttributeNotFound
}

// PriorityAttr represents the PRIORITY attribute.
type PriorityAttr uint32

// AddTo adds PRIORITY attribute to message.
func (p PriorityAttr) AddTo(m *stun.Message) error {
	v := make([]byte, prioritySize)
	binary.BigEndian.PutUint32(v, uint32(p))
	m.Add(stun.AttrPriority, v)
	return nil
}

// GetFrom decodes PRIORITY from message.
func (p *PriorityAttr) GetFrom(m *stun.Message) error {
	v, err := m.Get(stun.AttrPriority)
	if err != nil {
		return err
	}
	if err = stun.CheckSize(stun.AttrPriority, len(v), prioritySize); err != nil {
		return err
	}
	*p = PriorityAttr(binary.BigEndian.Uint32(v))
	return nil
}

// UseCandidateAttr represents the USE-CANDIDATE attribute.
type UseCandidateAttr struct{}

// AddTo adds USE-CANDIDATE attribute to message.
func (UseCandidateAttr) AddTo(m *stun.Message) error {
	m.Add(stun.AttrUseCandidate, nil)
	return nil
}

// IsSet reports whether the message carries USE-CANDIDATE.
func (UseCandidateAttr) IsSet(m *stun.Message) bool {
	_, err := m.Get(stun.AttrUseCandidate)
	return err == nil
}

// UseCandidate is a shorthand setter for nominating checks.
func UseCandidate() UseCandidateAttr {
	return UseCandidateAttr{}
}

package world

import (
	"github.com/aukilabs/raido/messages"
	"github.com/aukilabs/raido/models"
)

// A world participant.
type Participant struct {
	ID        uint32
	Responder messages.ResponseSender

	entityIDs map[uint32]struct{}
}

func (p *Participant) AddEntity(e *models.Entity) {
	if p.entityIDs == nil {
		p.entityIDs = make(map[uint32]struct{})
	}
	p.entityIDs[e.ID] = struct{}{}
}

func (p *Participant) RemoveEntity(e *models.Entity) {
	delete(p.entityIDs, e.ID)
}

func (p *Participant) EntityIDs() map[uint32]struct{} {
	return p.entityIDs
}

// Package id builds group-prefixed xid identifiers such as "spawn-cv1k2l3h5rkg00b0lnpg".
package id

import (
	"fmt"

	"github.com/rs/xid"
)

type ID struct {
	xid   xid.ID
	group string
}

func NewID(group string) ID {
	return ID{
		xid:   xid.New(),
		group: group,
	}
}

func (id ID) String() string {
	return fmt.Sprintf("%s-%s", id.group, id.xid.String())
}

func (id ID) Group() string {
	return id.group
}

package events

import (
	"strconv"

	"solaire/core/types"
)

const (
	TypeGoldBarAdded                = "gold.bar_added"
	TypeGoldBarDeactivated          = "gold.bar_deactivated"
	TypeGoldBarOwnershipTransferred = "gold.bar_ownership_transferred"
)

// GoldBarAdded is emitted when a physical bar enters the reserve registry.
type GoldBarAdded struct {
	Token    string
	BarID    uint64
	Serial   string
	Weight   uint64
	Refinery string
}

func (GoldBarAdded) EventType() string { return TypeGoldBarAdded }

func (e GoldBarAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeGoldBarAdded,
		Attributes: map[string]string{
			"token":    e.Token,
			"barId":    strconv.FormatUint(e.BarID, 10),
			"serial":   e.Serial,
			"weight":   strconv.FormatUint(e.Weight, 10),
			"refinery": e.Refinery,
		},
	}
}

// GoldBarDeactivated is emitted when a bar leaves the active reserve.
type GoldBarDeactivated struct {
	Token string
	BarID uint64
}

func (GoldBarDeactivated) EventType() string { return TypeGoldBarDeactivated }

func (e GoldBarDeactivated) Event() *types.Event {
	return &types.Event{
		Type: TypeGoldBarDeactivated,
		Attributes: map[string]string{
			"token": e.Token,
			"barId": strconv.FormatUint(e.BarID, 10),
		},
	}
}

// GoldBarOwnershipTransferred is emitted on bar assignment. Previous is the
// zero account for a bar that had no owner.
type GoldBarOwnershipTransferred struct {
	Token    string
	BarID    uint64
	Previous [20]byte
	Owner    [20]byte
}

func (GoldBarOwnershipTransferred) EventType() string { return TypeGoldBarOwnershipTransferred }

func (e GoldBarOwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeGoldBarOwnershipTransferred,
		Attributes: map[string]string{
			"token":    e.Token,
			"barId":    strconv.FormatUint(e.BarID, 10),
			"previous": addressString(e.Previous),
			"owner":    addressString(e.Owner),
		},
	}
}

package layout

// Slot names. Some names appear in both roles at the same offset.
const (
	SlotCarSecret    SlotName = "CAR_SECRET"
	SlotManPublic    SlotName = "MAN_PUBLIC"
	SlotFobPublic    SlotName = "FOB_PUBLIC"
	SlotCarID        SlotName = "CAR_ID"
	SlotFobSecret    SlotName = "FOB_SECRET"
	SlotFobSecretEnc SlotName = "FOB_SECRET_ENC"
	SlotFobSalt      SlotName = "FOB_SALT"
	SlotPINHash      SlotName = "PIN_HASH"
	SlotFeat1        SlotName = "FEAT_1"
	SlotFeat2        SlotName = "FEAT_2"
	SlotFeat3        SlotName = "FEAT_3"
	SlotFeat1Sig     SlotName = "FEAT_1_SIG"
	SlotFeat2Sig     SlotName = "FEAT_2_SIG"
	SlotFeat3Sig     SlotName = "FEAT_3_SIG"
	SlotCarPublic    SlotName = "CAR_PUBLIC"
	SlotFobIsPaired  SlotName = "FOB_IS_PAIRED"
	SlotMsgFeat3     SlotName = "MSG_FEAT_3"
	SlotMsgFeat2     SlotName = "MSG_FEAT_2"
	SlotMsgFeat1     SlotName = "MSG_FEAT_1"
	SlotMsgUnlock    SlotName = "MSG_UNLOCK"
)

// MessageSize is the size of each MSG_* slot.
const MessageSize = 64

// CarMapV1 is version 1 of the Car image layout.
var CarMapV1 = MustOffsetMap(RoleCar, 1,
	Slot{SlotCarSecret, 0x100, 32},
	Slot{SlotManPublic, 0x120, 64},
	Slot{SlotFobPublic, 0x160, 64},
	Slot{SlotCarID, 0x200, 4},
	Slot{SlotMsgFeat3, 0x700, MessageSize},
	Slot{SlotMsgFeat2, 0x740, MessageSize},
	Slot{SlotMsgFeat1, 0x780, MessageSize},
	Slot{SlotMsgUnlock, 0x7C0, MessageSize},
)

// FobMapV1 is version 1 of the Fob image layout.
var FobMapV1 = MustOffsetMap(RoleFob, 1,
	Slot{SlotFobSecret, 0x100, 32},
	Slot{SlotFobSecretEnc, 0x120, 32},
	Slot{SlotFobSalt, 0x140, 12},
	Slot{SlotPINHash, 0x160, 32},
	Slot{SlotCarID, 0x200, 4},
	Slot{SlotFeat1, 0x204, 4},
	Slot{SlotFeat2, 0x208, 4},
	Slot{SlotFeat3, 0x20C, 4},
	Slot{SlotFeat1Sig, 0x240, 64},
	Slot{SlotFeat2Sig, 0x280, 64},
	Slot{SlotFeat3Sig, 0x2C0, 64},
	Slot{SlotCarPublic, 0x300, 64},
	Slot{SlotFobIsPaired, 0x400, 4},
	Slot{SlotMsgFeat3, 0x700, MessageSize},
	Slot{SlotMsgFeat2, 0x740, MessageSize},
	Slot{SlotMsgFeat1, 0x780, MessageSize},
	Slot{SlotMsgUnlock, 0x7C0, MessageSize},
)

// MapFor returns the current layout for role.
func MapFor(role Role) (*OffsetMap, error) {
	switch role {
	case RoleCar:
		return CarMapV1, nil
	case RoleFob:
		return FobMapV1, nil
	default:
		return nil, ErrUnknownRole
	}
}

// FeatureSlots returns the FEAT_n and FEAT_n_SIG slot names for feature
// slot n (1-3).
func FeatureSlots(n int) (nonce, sig SlotName, ok bool) {
	switch n {
	case 1:
		return SlotFeat1, SlotFeat1Sig, true
	case 2:
		return SlotFeat2, SlotFeat2Sig, true
	case 3:
		return SlotFeat3, SlotFeat3Sig, true
	default:
		return "", "", false
	}
}

// MessageSlot returns the car's MSG_FEAT_n slot for feature slot n (1-3).
func MessageSlot(n int) (SlotName, bool) {
	switch n {
	case 1:
		return SlotMsgFeat1, true
	case 2:
		return SlotMsgFeat2, true
	case 3:
		return SlotMsgFeat3, true
	default:
		return "", false
	}
}

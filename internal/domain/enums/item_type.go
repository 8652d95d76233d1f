package enums

import (
	"fmt"
	"strings"
)

type ItemType string

const (
	ItemTypeBook   ItemType = "book"
	ItemTypeBundle ItemType = "bundle"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeBook || t == ItemTypeBundle
}

func ParseItemType(raw string) (ItemType, error) {
	itemType := ItemType(strings.ToLower(strings.TrimSpace(raw)))
	if !itemType.Valid() {
		return "", fmt.Errorf("unknown item type %q", raw)
	}
	return itemType, nil
}

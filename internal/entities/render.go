package entities

import "fmt"

type UnitKind string

const (
	UnitText  UnitKind = "text"
	UnitImage UnitKind = "image"
)

// RenderUnit is one outbound message. Units are sent in the order produced.
type RenderUnit struct {
	Kind     UnitKind
	Text     string
	Image    []byte
	Mimetype string
	Caption  string // only on the first image of a product
}

func TextUnit(text string) RenderUnit {
	return RenderUnit{Kind: UnitText, Text: text}
}

func ImageUnit(data []byte, mimetype, caption string) RenderUnit {
	return RenderUnit{Kind: UnitImage, Image: data, Mimetype: mimetype, Caption: caption}
}

// StorageError is raised when inbound media cannot be decrypted or persisted
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

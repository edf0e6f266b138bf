package batch

import (
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/tstromberg/imgecho/pkg/meta"
)

// Status is the processing state of an item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Item is one photo in the queue.
type Item struct {
	ID   string
	Name string
	Path string
	// Thumbnail is a small JPEG preview.
	Thumbnail []byte
	Blurhash  string

	mu         sync.Mutex
	working    image.Image
	pristine   image.Image
	exif       meta.Record
	exifLoaded bool
	override   *meta.Record
	status     Status
	errMsg     string
	output     []byte
}

// NewItem returns a pending item whose working and pristine images are img.
func NewItem(name, path string, img image.Image) *Item {
	return &Item{
		ID:       uuid.NewString(),
		Name:     name,
		Path:     path,
		working:  img,
		pristine: img,
		status:   StatusPending,
	}
}

// Working returns the current base image.
func (it *Item) Working() image.Image {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.working
}

// Pristine returns the image as first decoded.
func (it *Item) Pristine() image.Image {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.pristine
}

// SetWorkingImage replaces the base image. The pristine image is never touched.
func (it *Item) SetWorkingImage(img image.Image) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.working = img
}

// SetWorking is SetWorkingImage; it lets an Item back a transform.Machine.
func (it *Item) SetWorking(img image.Image) { it.SetWorkingImage(img) }

// ResetToPristine discards every edit to the base image.
func (it *Item) ResetToPristine() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.working = it.pristine
}

// Exif returns the extracted metadata and whether extraction has finished.
func (it *Item) Exif() (meta.Record, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.exif, it.exifLoaded
}

func (it *Item) setExif(r meta.Record) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.exif = r
	it.exifLoaded = true
}

// Override returns the per-item override, if any.
func (it *Item) Override() (meta.Record, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.override == nil {
		return meta.Record{}, false
	}
	return *it.override, true
}

func (it *Item) setOverride(r *meta.Record) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.override = r
}

// SetStatus records progress. msg is kept for StatusError.
func (it *Item) SetStatus(s Status, msg string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.status = s
	it.errMsg = ""
	if s == StatusError {
		it.errMsg = msg
	}
}

// Status returns the status and error message.
func (it *Item) Status() (Status, string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.status, it.errMsg
}

// SetOutput stores the processed result and marks the item completed.
func (it *Item) SetOutput(b []byte) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.output = b
	it.status = StatusCompleted
	it.errMsg = ""
}

// Output returns the processed result, or nil.
func (it *Item) Output() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.output
}

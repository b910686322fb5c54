package toplevel

// ObjectID names a protocol object passed as a request argument, such as the
// seat for activate or the surface for set_rectangle.
type ObjectID uint32

// Rect is a rectangle in surface-local coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Handle is the remote toplevel object that commands are sent to. The
// Wayland adapter implements it with zwlr_foreign_toplevel_handle_v1
// requests; the X11 adapter maps it onto EWMH client messages.
type Handle interface {
	ID() uint32
	SetMinimized() error
	Activate(seat ObjectID) error
	SetRectangle(surface ObjectID, r Rect) error
	Close() error
	// Destroy releases the handle. Called exactly once, after closed.
	Destroy() error
}

// ManagerHandle is the bound foreign-toplevel manager.
type ManagerHandle interface {
	// Release drops the local object after the server finished it.
	Release()
}

package editor

type EditorOpt func(*Editor)

// WithLevel sets the permission level needed to use the editor.
func WithLevel(level string) EditorOpt {
	return func(e *Editor) {
		e.level = level
	}
}

// WithCreateLevel sets the permission level needed to create objects. It
// defaults to the editor level.
func WithCreateLevel(level string) EditorOpt {
	return func(e *Editor) {
		e.createLevel = level
	}
}

// WithoutCreate disables creation through the editor. Objects are created
// elsewhere and only maintained here.
func WithoutCreate() EditorOpt {
	return func(e *Editor) {
		e.noCreate = true
	}
}

func WithHooks(h Hooks) EditorOpt {
	return func(e *Editor) {
		e.hooks = h
	}
}

func WithPublisher(p Publisher) EditorOpt {
	return func(e *Editor) {
		e.pub = p
	}
}

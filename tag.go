package forestz

// Default icons for level-derived tags.
const (
	TraceIcon = '📍'
	DebugIcon = '🐛'
	InfoIcon  = '💬'
	WarnIcon  = '🚧'
	ErrorIcon = '🚨'
)

// Tag is the display category of an event: an icon and a label with an
// optional prefix. Tags are comparable and immutable.
type Tag struct {
	prefix string
	label  string
	icon   rune
}

// TagParser derives a custom Tag from an event's level and category.
// Returning false falls back to ResolveTag.
type TagParser func(level Level, category string) (Tag, bool)

// NewTag returns a Tag built from application-supplied parts,
// e.g. NewTag("security", "critical", '🔐') displays as "security.critical".
func NewTag(prefix, label string, icon rune) Tag {
	return Tag{prefix: prefix, label: label, icon: icon}
}

// TagForLevel returns the canonical tag of a level.
func TagForLevel(level Level) Tag {
	return ResolveTag(level, "")
}

// ResolveTag returns the tag for a level, using category as the prefix when
// it is not empty.
func ResolveTag(level Level, category string) Tag {
	switch level {
	case LevelTrace:
		return NewTag(category, "trace", TraceIcon)
	case LevelDebug:
		return NewTag(category, "debug", DebugIcon)
	case LevelWarn:
		return NewTag(category, "warn", WarnIcon)
	case LevelError:
		return NewTag(category, "error", ErrorIcon)
	default:
		return NewTag(category, "info", InfoIcon)
	}
}

// Prefix returns the tag prefix, or "" if there is none.
func (t Tag) Prefix() string { return t.prefix }

// Label returns the tag label.
func (t Tag) Label() string { return t.label }

// Icon returns the tag icon.
func (t Tag) Icon() rune { return t.icon }

// String renders "prefix.label", or "label" when there is no prefix.
func (t Tag) String() string {
	if t.prefix == "" {
		return t.label
	}
	return t.prefix + "." + t.label
}

// Display renders the tag as "icon [prefix.label]".
func (t Tag) Display() string {
	return string(t.icon) + " [" + t.String() + "]"
}

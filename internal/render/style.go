package render

import "fmt"

// Surface is where annotations go.
type Surface string

const (
	SurfaceInline  Surface = "inline"
	SurfaceComment Surface = "comment"
)

// Granularity is the layout of comment annotations.
type Granularity string

const (
	GranularityAuto   Granularity = "auto"
	GranularitySingle Granularity = "single"
	GranularityMulti  Granularity = "multi"
)

// Style is how annotations are rendered.
type Style struct {
	Surface     Surface
	Granularity Granularity
	PythonMajor int
	// Default is written for slots nothing resolved when a comment needs a
	// type in every position.
	Default string
}

// UnsupportedStyleError means the style cannot be expressed for the target
// Python version.
type UnsupportedStyleError struct {
	Surface     Surface
	PythonMajor int
}

func (e *UnsupportedStyleError) Error() string {
	return fmt.Sprintf("%s annotations need python 3, target is python %d", e.Surface, e.PythonMajor)
}

// StyleFor maps the annotation-style ("auto", "py2", "py3") and
// comment-style ("auto", "single", "multi") options onto a Style.
func StyleFor(annotationStyle, commentStyle string, pythonMajor int) (Style, error) {
	s := Style{PythonMajor: pythonMajor, Default: "Any"}
	switch annotationStyle {
	case "", "auto":
		s.Surface = SurfaceInline
		if pythonMajor < 3 {
			s.Surface = SurfaceComment
		}
	case "py2":
		s.Surface = SurfaceComment
	case "py3":
		s.Surface = SurfaceInline
	default:
		return Style{}, fmt.Errorf("unknown annotation style %q", annotationStyle)
	}
	switch Granularity(commentStyle) {
	case "", GranularityAuto:
		s.Granularity = GranularityAuto
	case GranularitySingle, GranularityMulti:
		s.Granularity = Granularity(commentStyle)
	default:
		return Style{}, fmt.Errorf("unknown comment style %q", commentStyle)
	}
	return s, nil
}

// Comment returns s switched to type comments.
func (s Style) Comment() Style {
	s.Surface = SurfaceComment
	return s
}

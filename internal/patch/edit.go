package patch

import "fmt"

// Edit replaces the original-text span [Offset, End) of File with Text.
// A pure insertion has End == Offset.
type Edit struct {
	File   string `json:"file"`
	Offset int    `json:"offset"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	Seq    int    `json:"seq"`
}

// Insert builds a zero-length edit at offset.
func Insert(file string, offset int, text string, seq int) Edit {
	return Edit{File: file, Offset: offset, End: offset, Text: text, Seq: seq}
}

// Replace builds an edit that swaps the original bytes [start, end) for text.
func Replace(file string, start, end int, text string, seq int) Edit {
	return Edit{File: file, Offset: start, End: end, Text: text, Seq: seq}
}

func (e Edit) IsInsertion() bool {
	return e.Offset == e.End
}

// Delta is the length change the edit causes in the output.
func (e Edit) Delta() int {
	return len(e.Text) - (e.End - e.Offset)
}

func (e Edit) String() string {
	if e.IsInsertion() {
		return fmt.Sprintf("insert@%d#%d %q", e.Offset, e.Seq, e.Text)
	}
	return fmt.Sprintf("replace[%d,%d)#%d %q", e.Offset, e.End, e.Seq, e.Text)
}

// Sequencer hands out sequence numbers in creation order. One Sequencer is
// used per file so that edits sharing an offset keep the order they were made in.
type Sequencer struct {
	next int
}

func (s *Sequencer) Next() int {
	n := s.next
	s.next++
	return n
}

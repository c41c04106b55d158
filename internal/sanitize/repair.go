package sanitize

// repairBalance is the stack-based tag-balance repair: opening tags push,
// closing tags pop to their matching entry (implicitly closing anything
// above it), a close with no matching open is dropped, and whatever remains
// open at end of input is closed in reverse order. Void and self-closing
// elements never enter the stack. The function is stateless with respect to
// the caller and total: any token sequence comes out balanced.
func repairBalance(tokens []token) []token {
	var out []token
	var stack []string

	for _, tok := range tokens {
		if tok.Tag == nil {
			out = append(out, tok)
			continue
		}
		t := tok.Tag
		if voidTags[t.Name] || t.SelfClosing {
			if t.Closing {
				continue // "</br>" and friends: meaningless, dropped
			}
			out = append(out, tok)
			continue
		}
		if !t.Closing {
			stack = append(stack, t.Name)
			out = append(out, tok)
			continue
		}

		match := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == t.Name {
				match = i
				break
			}
		}
		if match < 0 {
			continue // unmatched close: dropped
		}
		// Entries above the match are implicitly closed.
		for i := len(stack) - 1; i > match; i-- {
			out = append(out, tagToken(&tag{Name: stack[i], Closing: true}))
		}
		out = append(out, tok)
		stack = stack[:match]
	}

	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, tagToken(&tag{Name: stack[i], Closing: true}))
	}
	return out
}

// repairParagraphs fixes direct paragraph nesting, which the generic stack
// repair intentionally leaves alone: a second paragraph-open with no
// intervening close becomes close-then-open, and a redundant consecutive
// close is dropped. Runs after repairBalance, so balance is preserved:
// every inserted close pairs the open it interrupts, every dropped close
// had no open.
func repairParagraphs(tokens []token) []token {
	var out []token
	depth := 0
	for _, tok := range tokens {
		if tok.Tag == nil || tok.Tag.Name != "p" || tok.Tag.SelfClosing {
			out = append(out, tok)
			continue
		}
		if tok.Tag.Closing {
			if depth == 0 {
				continue
			}
			depth--
			out = append(out, tok)
			continue
		}
		if depth > 0 {
			out = append(out, tagToken(&tag{Name: "p", Closing: true}))
			depth--
		}
		depth++
		out = append(out, tok)
	}
	return out
}

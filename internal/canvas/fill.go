package canvas

// Fill flood-fills the connected region under (x,y) with the active color
// using a scanline sweep with 4-connectivity.
func (c *Canvas) Fill(x, y int) {
	b := c.img.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return
	}

	target := c.img.RGBAAt(x, y)
	fill := c.paintColor()
	if target == fill {
		return
	}

	type span struct{ x, y int }
	stack := []span{{x, y}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if c.img.RGBAAt(s.x, s.y) != target {
			continue
		}

		// Expand to the full horizontal run.
		left := s.x
		for left > b.Min.X && c.img.RGBAAt(left-1, s.y) == target {
			left--
		}
		right := s.x
		for right < b.Max.X-1 && c.img.RGBAAt(right+1, s.y) == target {
			right++
		}

		for px := left; px <= right; px++ {
			c.img.SetRGBA(px, s.y, fill)
			if s.y > b.Min.Y && c.img.RGBAAt(px, s.y-1) == target {
				stack = append(stack, span{px, s.y - 1})
			}
			if s.y < b.Max.Y-1 && c.img.RGBAAt(px, s.y+1) == target {
				stack = append(stack, span{px, s.y + 1})
			}
		}
	}
}

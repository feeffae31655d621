package lanes

// plane is an 8-bit single-channel image, row-major without padding.
type plane struct {
	w, h int
	pix  []uint8
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, pix: make([]uint8, w*h)}
}

func (p *plane) at(x, y int) uint8 {
	return p.pix[y*p.w+x]
}

// atClamped reads with edge replication outside the plane.
func (p *plane) atClamped(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= p.w {
		x = p.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.h {
		y = p.h - 1
	}
	return p.pix[y*p.w+x]
}

func (p *plane) set(x, y int, v uint8) {
	p.pix[y*p.w+x] = v
}

// gaussianBlur5 applies a separable 5x5 Gaussian (kernel 1 4 6 4 1 / 16).
func gaussianBlur5(src *plane) *plane {
	kernel := [5]int{1, 4, 6, 4, 1}
	tmp := newPlane(src.w, src.h)
	dst := newPlane(src.w, src.h)

	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				sum += kernel[k+2] * int(src.atClamped(x+k, y))
			}
			tmp.set(x, y, uint8(sum/16))
		}
	}
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			sum := 0
			for k := -2; k <= 2; k++ {
				sum += kernel[k+2] * int(tmp.atClamped(x, y+k))
			}
			dst.set(x, y, uint8(sum/16))
		}
	}
	return dst
}

// Gradient direction sectors for non-maximum suppression.
const (
	sectorH = iota // horizontal gradient, compare left/right
	sectorD1       // 45 degrees
	sectorV        // vertical gradient, compare up/down
	sectorD2       // 135 degrees
)

// cannyEdges runs a Canny-style edge detector: Sobel gradients, non-maximum
// suppression, then double-threshold hysteresis. Returns a binary plane with
// edge pixels set to 255.
func cannyEdges(src *plane, lowThreshold, highThreshold int) *plane {
	w, h := src.w, src.h
	magnitude := make([]int, w*h)
	sector := make([]uint8, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -int(src.atClamped(x-1, y-1)) + int(src.atClamped(x+1, y-1)) +
				-2*int(src.atClamped(x-1, y)) + 2*int(src.atClamped(x+1, y)) +
				-int(src.atClamped(x-1, y+1)) + int(src.atClamped(x+1, y+1))
			gy := -int(src.atClamped(x-1, y-1)) - 2*int(src.atClamped(x, y-1)) - int(src.atClamped(x+1, y-1)) +
				int(src.atClamped(x-1, y+1)) + 2*int(src.atClamped(x, y+1)) + int(src.atClamped(x+1, y+1))

			mag := abs(gx) + abs(gy)
			magnitude[y*w+x] = mag
			sector[y*w+x] = gradientSector(gx, gy)
		}
	}

	// Non-maximum suppression: keep a pixel only if it dominates its two
	// neighbors along the gradient direction.
	thin := make([]int, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := magnitude[i]
			var a, b int
			switch sector[i] {
			case sectorH:
				a, b = magnitude[i-1], magnitude[i+1]
			case sectorV:
				a, b = magnitude[i-w], magnitude[i+w]
			case sectorD1:
				a, b = magnitude[i-w+1], magnitude[i+w-1]
			default:
				a, b = magnitude[i-w-1], magnitude[i+w+1]
			}
			if m >= a && m >= b {
				thin[i] = m
			}
		}
	}

	// Hysteresis: strong pixels seed edges, weak pixels join only when
	// connected to a strong one.
	dst := newPlane(w, h)
	var stack []int
	for i, m := range thin {
		if m >= highThreshold && dst.pix[i] == 0 {
			dst.pix[i] = 255
			stack = append(stack, i)
			for len(stack) > 0 {
				j := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				jx, jy := j%w, j/w
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := jx+dx, jy+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						n := ny*w + nx
						if dst.pix[n] == 0 && thin[n] >= lowThreshold {
							dst.pix[n] = 255
							stack = append(stack, n)
						}
					}
				}
			}
		}
	}
	return dst
}

// gradientSector quantizes a gradient vector into one of four directions.
func gradientSector(gx, gy int) uint8 {
	ax, ay := abs(gx), abs(gy)
	// Sector boundaries at |gy/gx| ratios 0.4 and 2.5, integer
	// cross-multiplied.
	switch {
	case ay*5 <= ax*2: // |gy/gx| < ~0.4
		return sectorH
	case ax*5 <= ay*2: // |gy/gx| > ~2.5
		return sectorV
	case (gx > 0) == (gy > 0):
		return sectorD2
	default:
		return sectorD1
	}
}

// applyTrapezoidMask zeroes everything outside the forward-road region of
// interest: a trapezoid from the frame bottom corners (inset 10%) up to 60%
// of frame height around the center.
func applyTrapezoidMask(edges *plane) {
	w := float64(edges.w)
	h := float64(edges.h)
	top := h * laneTopFraction

	for y := 0; y < edges.h; y++ {
		fy := float64(y)
		if fy < top {
			for x := 0; x < edges.w; x++ {
				edges.set(x, y, 0)
			}
			continue
		}
		// Interpolate the trapezoid's left and right edges at this row:
		// at y=h the span is [0.1w, 0.9w]; at y=0.6h it is [0.45w, 0.55w].
		t := 0.0
		if h > top {
			t = (fy - top) / (h - top)
		}
		xLeft := 0.45*w + t*(0.1*w-0.45*w)
		xRight := 0.55*w + t*(0.9*w-0.55*w)
		for x := 0; x < edges.w; x++ {
			fx := float64(x)
			if fx < xLeft || fx > xRight {
				edges.set(x, y, 0)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package slideshow

// Preloader warms a slide asset before it is first displayed. Preload must not block
// and never reports failure: a slide that cannot be loaded simply fails to render.
type Preloader interface {
	Preload(src string)
}

// PreloadFunc adapts a function to the Preloader interface.
type PreloadFunc func(src string)

func (f PreloadFunc) Preload(src string) {
	f(src)
}

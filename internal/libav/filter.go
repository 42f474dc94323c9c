package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/transcode"
)

// overlayFilter runs frames through buffer -> description -> buffersink.
type overlayFilter struct {
	graph  *astiav.FilterGraph
	src    *astiav.BuffersrcFilterContext
	sink   *astiav.BuffersinkFilterContext
	output frame
}

func newOverlayFilter(params transcode.VideoParams, description string) (_ *overlayFilter, err error) {
	graph := astiav.AllocFilterGraph()
	if graph == nil {
		return nil, errors.New("alloc filter graph")
	}
	defer func() {
		if err != nil {
			graph.Free()
		}
	}()

	outputs := astiav.AllocFilterInOut()
	defer outputs.Free()
	inputs := astiav.AllocFilterInOut()
	defer inputs.Free()

	buffersrc := astiav.FindFilterByName("buffer")
	buffersink := astiav.FindFilterByName("buffersink")
	if buffersrc == nil || buffersink == nil {
		return nil, errors.New("buffer filters not available")
	}

	src, err := graph.NewBuffersrcFilterContext(buffersrc, "in")
	if err != nil {
		return nil, fmt.Errorf("create buffersrc: %w", err)
	}
	sink, err := graph.NewBuffersinkFilterContext(buffersink, "out")
	if err != nil {
		return nil, fmt.Errorf("create buffersink: %w", err)
	}

	srcParams := astiav.AllocBuffersrcFilterContextParameters()
	defer srcParams.Free()
	srcParams.SetWidth(params.Width)
	srcParams.SetHeight(params.Height)
	srcParams.SetPixelFormat(astiav.PixelFormat(params.PixelFormat))
	srcParams.SetSampleAspectRatio(toAV(params.SampleAspect))
	srcParams.SetTimeBase(toAV(params.TimeBase))
	if err := src.SetParameters(srcParams); err != nil {
		return nil, fmt.Errorf("set buffersrc parameters: %w", err)
	}
	if err := src.Initialize(nil); err != nil {
		return nil, fmt.Errorf("initialize buffersrc: %w", err)
	}

	outputs.SetName("in")
	outputs.SetFilterContext(src.FilterContext())
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	inputs.SetName("out")
	inputs.SetFilterContext(sink.FilterContext())
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	if err := graph.Parse(description, inputs, outputs); err != nil {
		return nil, fmt.Errorf("parse %q: %w", description, err)
	}
	if err := graph.Configure(); err != nil {
		return nil, fmt.Errorf("configure graph: %w", err)
	}

	return &overlayFilter{
		graph:  graph,
		src:    src,
		sink:   sink,
		output: frame{f: astiav.AllocFrame()},
	}, nil
}

// Apply pushes one frame and pulls the stamped one. The returned frame is
// valid until the next call.
func (o *overlayFilter) Apply(f transcode.Frame) (transcode.Frame, error) {
	in, err := avFrame(f)
	if err != nil {
		return nil, err
	}
	if err := o.src.AddFrame(in, astiav.NewBuffersrcFlags(astiav.BuffersrcFlagKeepRef)); err != nil {
		return nil, fmt.Errorf("add frame: %w", err)
	}
	o.output.f.Unref()
	if err := o.sink.GetFrame(o.output.f, astiav.NewBuffersinkFlags()); err != nil {
		return nil, fmt.Errorf("get frame: %w", codecError(err))
	}
	return &o.output, nil
}

func (o *overlayFilter) Close() {
	o.output.f.Free()
	o.graph.Free()
}

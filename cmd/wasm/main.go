//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/TapAlign/internal/annotation"
	"github.com/himanishpuri/TapAlign/internal/audio"
	"github.com/himanishpuri/TapAlign/internal/model"
	"github.com/himanishpuri/TapAlign/internal/onset"
	"github.com/himanishpuri/TapAlign/internal/processor"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorInvalidTrials
	ErrorInvalidThresholds
)

// alignTaps matches the taps of an interleaved stereo recording to its beats.
// Arguments: samples, sampleRate, trialsJSON, condition, thresholds where
// thresholds is {beat: {height, distance, prominence}, tap: {...}}.
// Returns: {error: number, data: array | string}
func alignTaps(this js.Value, args []js.Value) any {
	if len(args) < 5 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 5 arguments: samples, sampleRate, trialsJSON, condition, thresholds")
	}

	samplesJS, sampleRateJS := args[0], args[1]
	if samplesJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "samples must be an Array or Float64Array")
	}
	if sampleRateJS.Type() != js.TypeNumber || sampleRateJS.Int() <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a positive number")
	}
	if args[2].Type() != js.TypeString || args[3].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "trialsJSON and condition must be strings")
	}
	sampleRate := sampleRateJS.Int()

	condition, err := model.ParseCondition(args[3].String())
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}

	trials, err := annotation.ParseTrials([]byte(args[2].String()))
	if err != nil {
		return makeErrorResponse(ErrorInvalidTrials, err.Error())
	}

	params, err := readThresholds(args[4])
	if err != nil {
		return makeErrorResponse(ErrorInvalidThresholds, err.Error())
	}

	length := samplesJS.Length()
	if length < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "samples is empty")
	}
	beats := make([]float64, length/2)
	taps := make([]float64, length/2)
	for i := range beats {
		b, t := samplesJS.Index(2*i), samplesJS.Index(2*i+1)
		if b.Type() != js.TypeNumber || t.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("samples element %d is not a number", 2*i))
		}
		beats[i], taps[i] = b.Float(), t.Float()
	}

	res := processor.Process(audio.Normalize(beats), audio.Normalize(taps), sampleRate, trials, condition, params, consoleLogger{})

	matches := js.Global().Get("Array").New()
	for i, r := range res.Records {
		obj := js.Global().Get("Object").New()
		obj.Set("trial", r.Trial)
		obj.Set("beatNb", r.Beat+1)
		obj.Set("beatInstant", r.BeatTime)
		obj.Set("tapInstant", r.TapTime)
		obj.Set("rule", string(r.Rule))
		matches.SetIndex(i, obj)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", matches)
	result.Set("skipped", res.SkippedTrials())
	return result
}

func readThresholds(v js.Value) (processor.ChannelParams, error) {
	if v.Type() != js.TypeObject {
		return processor.ChannelParams{}, fmt.Errorf("thresholds must be an object")
	}
	p := processor.ChannelParams{
		Beat: readChannel(v.Get("beat")),
		Tap:  readChannel(v.Get("tap")),
	}
	return p, p.Validate()
}

func readChannel(v js.Value) onset.Params {
	if v.Type() != js.TypeObject {
		return onset.Params{}
	}
	return onset.Params{
		MinHeight:          number(v.Get("height")),
		MinDistanceSeconds: number(v.Get("distance")),
		MinProminence:      number(v.Get("prominence")),
	}
}

func number(v js.Value) float64 {
	if v.Type() != js.TypeNumber {
		return 0
	}
	return v.Float()
}

// consoleLogger forwards processor messages to the browser console.
type consoleLogger struct{}

func (consoleLogger) Debugf(format string, args ...any) {
	log("debug", fmt.Sprintf(format, args...))
}

func (consoleLogger) Warnf(format string, args ...any) {
	log("warn", fmt.Sprintf(format, args...))
}

func log(method, msg string) {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call(method, msg)
	}
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	log("log", "🔧 TapAlign WASM module initializing...")

	done := make(chan struct{})

	js.Global().Set("alignTaps", js.FuncOf(alignTaps))
	log("log", "📝 alignTaps function registered")

	window := js.Global().Get("window")
	if window.IsUndefined() {
		log("error", "❌ window object is undefined!")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
		log("log", "✅ wasmReady event dispatched")
	}

	<-done
}

// ABOUTME: Audio output package for realtime playback
// ABOUTME: Provides the Output interface and its device backends
// Package output drives a Callback from an audio device.
//
// Every backend asks the callback for fixed-size quanta of stereo float32
// audio: oto, malgo (miniaudio), PortAudio (build tag portaudio),
// PulseAudio (linux), the beep speaker, and a software clock that can
// record to WAV.
//
// Example:
//
//	out, err := output.New(output.Config{Backend: "malgo"})
//	err = out.Open(44100, 1024, deck)
//	defer out.Close()
package output

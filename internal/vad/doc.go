// Package vad detects the end of a spoken utterance from microphone energy.
//
// Each 16-bit frame votes speech or silence against an RMS threshold, with
// votes smoothed over a short majority window. An utterance ends once speech
// has been heard and enough trailing silence follows it.
package vad

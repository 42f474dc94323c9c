// Package recognition reads the burned-in "<id>-<milliseconds>" stamp back
// out of a decoded frame.
//
// A Reader crops the top band of an RGB raster (the band the overlay paints),
// hands it to a text Engine and parses the engine output. A parse failure is
// an ordinary Result with Recognized == false, never an error.
package recognition

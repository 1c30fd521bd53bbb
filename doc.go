// Public domain.

/*
Vacuumscan searches sequences of deep-space imaging frames for faint
residual signals that do not belong to any cataloged source.

Input is a set of timestamped frames grouped by sky region, each frame
carrying a pixel grid and a best-effort plate solution.  For every region
the pipeline resolves a usable coordinate mapping (widening the search
radius when the solution is degraded), subtracts the predicted brightness
of cataloged sources from each frame, differences the residual maps
across epochs, and scores the surviving residual clusters as ranked
anomaly candidates classified as moving, variable, or static-residual.

Packages:

	sky       small-angle geometry on the celestial sphere
	frame     imaging frames, intensity grids, plate solutions
	catalog   known-source catalog with point-spread profiles
	config    run configuration and validation

	internal/scanner   coordinate resolution and the adaptive scan loop
	internal/vacuum    known-source subtraction (vacuum maps)
	internal/tempdiff  multitemporal differencing
	internal/score     clustering, scoring, classification
	internal/pipeline  run orchestration and reporting

	cmd/vacuumscan     command line interface

The command reads a JSON run manifest describing regions and frames,
a gob-encoded source catalog, and an optional YAML configuration file;
it prints the ranked candidate list together with diagnostics for any
regions that had to be skipped.
*/
package vacuumscan

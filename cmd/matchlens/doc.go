// Command matchlens analyzes pre-segmented match video clips through an
// external audiovisual inference service and synthesizes the per-clip
// annotations into a single ordered match timeline.
package main

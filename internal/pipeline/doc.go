// Package pipeline drives an editing session for one actor: it opens the
// avatar and token composites, adds layers from image sources in the order
// they were requested, and on submit uploads both images and writes the new
// URLs back to the actor record in one update.
package pipeline

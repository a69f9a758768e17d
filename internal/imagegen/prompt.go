package imagegen

import "fmt"

// EnhancePrompt wraps the user's prompt with directives telling the provider
// how to use the reference image(s). The multi-reference variant names the
// count and asks for a synthesis across all references.
func EnhancePrompt(original string, refCount int) string {
	if refCount <= 1 {
		return fmt.Sprintf("Create a new image based on this reference: %s. Use the style, composition, and visual elements from the reference image as inspiration while generating the requested scene.", original)
	}
	return fmt.Sprintf("Create a new image combining elements from %d reference images: %s. Synthesize the visual styles, color palettes, and artistic elements from all references into a cohesive artwork.", refCount, original)
}

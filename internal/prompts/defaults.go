package prompts

// DefaultWords is the starter set loaded into an empty database.
var DefaultWords = []string{
	"cat", "dog", "tree", "car", "moon", "bicycle", "house", "sun", "fish",
	"bird", "flower", "book", "chair", "table", "airplane", "mountain",
	"river", "pizza", "apple", "banana", "guitar",
}

package token

import "strings"

// VocabularySize is the number of words in the public vocabulary. Each
// word therefore encodes exactly one byte.
const VocabularySize = 256

// vocabulary is the fixed public word list tokens are drawn from.
// Words are lowercase ASCII letters only, so they never contain a delimiter.
var vocabulary = [VocabularySize]string{
	"aardvark", "albatross", "alligator", "alpaca", "anaconda", "anchovy", "angelfish", "ant",
	"anteater", "antelope", "ape", "armadillo", "auk", "avocet", "baboon", "badger",
	"bandicoot", "barracuda", "bass", "bat", "bear", "beaver", "bee", "beetle",
	"bison", "boar", "bobcat", "bonobo", "buffalo", "bullfrog", "butterfly", "buzzard",
	"camel", "canary", "capybara", "caribou", "carp", "cat", "catfish", "chameleon",
	"cheetah", "chicken", "chinchilla", "chipmunk", "cicada", "clam", "cobra", "cod",
	"condor", "cougar", "cow", "coyote", "crab", "crane", "crayfish", "cricket",
	"crocodile", "crow", "cuckoo", "curlew", "deer", "dingo", "dodo", "dog",
	"dolphin", "donkey", "dormouse", "dove", "dragonfly", "duck", "dugong", "eagle",
	"eel", "egret", "elephant", "elk", "emu", "ermine", "falcon", "ferret",
	"finch", "firefly", "flamingo", "flea", "fly", "fox", "frog", "gazelle",
	"gecko", "gerbil", "gibbon", "giraffe", "gnat", "gnu", "goat", "goldfish",
	"goose", "gopher", "gorilla", "grouse", "guppy", "gull", "hamster", "hare",
	"harrier", "hawk", "hedgehog", "heron", "herring", "hippo", "hornet", "horse",
	"hyena", "ibex", "ibis", "iguana", "impala", "jackal", "jaguar", "jay",
	"jellyfish", "kangaroo", "kestrel", "kite", "kiwi", "koala", "koi", "krill",
	"ladybug", "lark", "lemming", "lemur", "leopard", "lion", "lizard", "llama",
	"lobster", "locust", "loon", "lynx", "macaw", "magpie", "mallard", "manatee",
	"mandrill", "mantis", "marlin", "marmot", "marten", "meerkat", "mink", "minnow",
	"mole", "mongoose", "monkey", "moose", "mosquito", "moth", "mouse", "mule",
	"muskrat", "narwhal", "newt", "ocelot", "octopus", "okapi", "opossum", "orca",
	"oriole", "oryx", "osprey", "ostrich", "otter", "owl", "ox", "oyster",
	"panda", "panther", "parrot", "partridge", "peacock", "pelican", "penguin", "pheasant",
	"pig", "pigeon", "pike", "piranha", "platypus", "plover", "pony", "porcupine",
	"porpoise", "possum", "prawn", "puffin", "puma", "python", "quail", "rabbit",
	"raccoon", "rat", "raven", "reindeer", "rhino", "robin", "rooster", "salamander",
	"salmon", "sardine", "scorpion", "seahorse", "seal", "shark", "sheep", "shrew",
	"shrimp", "skunk", "sloth", "snail", "snake", "sparrow", "spider", "squid",
	"squirrel", "starling", "stingray", "stoat", "stork", "swallow", "swan", "tapir",
	"tarsier", "termite", "tern", "tiger", "toad", "tortoise", "toucan", "trout",
	"tuna", "turkey", "turtle", "viper", "vole", "vulture", "wallaby", "walrus",
	"wasp", "weasel", "whale", "wolf", "wombat", "wren", "yak", "zebra",
}

var vocabularyIndex = func() map[string]byte {
	m := make(map[string]byte, VocabularySize)
	for i, w := range vocabulary {
		m[w] = byte(i)
	}
	return m
}()

// InVocabulary reports whether w is a vocabulary word.
func InVocabulary(w string) bool {
	_, ok := vocabularyIndex[w]
	return ok
}

// LooksLikeToken reports whether s has the shape of a token of any
// configuration: at least MinWords vocabulary words separated by runs of
// non-letters. It does not check the checksum.
func LooksLikeToken(s string) bool {
	if s == "" || len(s) > MaxWords*(maxWordLen+8) {
		return false
	}
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if len(words) < MinWords || len(words) > MaxWords {
		return false
	}
	if s[0] < 'a' || s[0] > 'z' || s[len(s)-1] < 'a' || s[len(s)-1] > 'z' {
		return false
	}
	for _, w := range words {
		if !InVocabulary(w) {
			return false
		}
	}
	return true
}

package features

import "strings"

const (
	DefaultMerchant = "Daraz.lk"
	DefaultJob      = "Psychologist, counselling"
	categoryPrefix  = "category_"
)

// merchantAliases maps storefront names to the merchant names the model was trained on.
var merchantAliases = map[string]string{
	"Odel":       "Daraz.lk",
	"Dialog":     "Dialog Axiata",
	"Pizza Hut":  "Pizza Hut Sri Lanka",
	"KFC":        "KFC Sri Lanka",
	"McDonald's": "McDonald's Sri Lanka",
}

var knownMerchants = map[string]struct{}{
	"Cargills Food City":         {},
	"Singer Sri Lanka":           {},
	"Mobitel":                    {},
	"Laugfs Supermarkets":        {},
	"KFC Sri Lanka":              {},
	"Dialog Axiata":              {},
	"Abans":                      {},
	"Hameedia":                   {},
	"Daraz.lk":                   {},
	"McDonald's Sri Lanka":       {},
	"Keells Super":               {},
	"Softlogic Retail (Pvt) Ltd": {},
	"Pizza Hut Sri Lanka":        {},
	"Perera & Sons":              {},
	"PickMe":                     {},
	"Fashion Bug":                {},
	"Arpico":                     {},
}

// jobTitles lists the titles with an explicit mapping. The model only knows one occupation, so every
// entry and every miss resolve to DefaultJob.
var jobTitles = map[string]string{
	"Software Engineer":    DefaultJob,
	"Software Developer":   DefaultJob,
	"Frontend Developer":   DefaultJob,
	"Backend Developer":    DefaultJob,
	"Full Stack Developer": DefaultJob,
	"Web Developer":        DefaultJob,
	"Computer Programmer":  DefaultJob,
	"programmer":           DefaultJob,
	"developer":            DefaultJob,
	"engineer":             DefaultJob,
	"scientist":            DefaultJob,
}

// NormalizeMerchant resolves aliases, then keeps names on the allow-list; anything else is DefaultMerchant.
func NormalizeMerchant(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := merchantAliases[name]; ok {
		name = canonical
	}
	if _, ok := knownMerchants[name]; ok {
		return name
	}
	return DefaultMerchant
}

// NormalizeJob maps a job title to the model's occupation vocabulary.
func NormalizeJob(title string) string {
	if mapped, ok := jobTitles[strings.TrimSpace(title)]; ok {
		return mapped
	}
	return DefaultJob
}

// Categories is the fixed, ordered category vocabulary of the model.
var Categories = [...]string{
	"entertainment",
	"food_dining",
	"gas_transport",
	"grocery_net",
	"grocery_pos",
	"health_fitness",
	"home",
	"kids_pets",
	"misc_net",
	"misc_pos",
	"personal_care",
	"shopping_net",
	"shopping_pos",
	"travel",
}

type OneHot [len(Categories)]int

// EncodeCategory sets the position of category, with or without the "category_" prefix. Unknown
// categories encode to all zeros.
func EncodeCategory(category string) OneHot {
	var v OneHot
	name := strings.TrimPrefix(strings.TrimSpace(category), categoryPrefix)
	for i, c := range Categories {
		if c == name {
			v[i] = 1
			break
		}
	}
	return v
}

// CategoryColumn is the prefixed column name the probability model expects.
func CategoryColumn(category string) string {
	return categoryPrefix + strings.TrimPrefix(strings.TrimSpace(category), categoryPrefix)
}

package classify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// TagRule maps a keyword list to a tag and its display emoji. A tag is
// present iff any keyword substring-matches the normalized text.
type TagRule struct {
	Name     string
	Keywords []string
	Emoji    string
}

// TagRules is the fixed classification table, in display order.
var TagRules = []TagRule{
	{Name: "discount", Keywords: []string{"скидк", "акция", "%", "дешевле", "распродажа", "спец", "цена", "discount", "sale"}, Emoji: "💰"},
	{Name: "gift", Keywords: []string{"в подарок", "подарок", "комплимент", "бесплатно", "gift", "free"}, Emoji: "🎁"},
	{Name: "chef", Keywords: []string{"шеф", "авторское", "сет", "дегустация", "tasting", "chef"}, Emoji: "👨‍🍳"},
	{Name: "festival", Keywords: []string{"фестиваль", "ивент", "мероприятие", "событие", "fest"}, Emoji: "🎉"},
	{Name: "breakfast", Keywords: []string{"завтрак", "утро", "каша", "кофе", "breakfast"}, Emoji: "🍳"},
	{Name: "brunch", Keywords: []string{"бранч", "brunch", "поздний завтрак"}, Emoji: "🥐"},
	{Name: "bar", Keywords: []string{"бар", "коктейль", "вино", "пиво", "алкоголь", "cocktail"}, Emoji: "🍸"},
	{Name: "asia", Keywords: []string{"суши", "роллы", "вок", "рамен", "азиатский", "sushi", "ramen"}, Emoji: "🍜"},
	{Name: "pizza", Keywords: []string{"пицца", "pizza", "пиццерия"}, Emoji: "🍕"},
	{Name: "vegan", Keywords: []string{"веган", "vegan", "растительное", "без мяса"}, Emoji: "🥗"},
}

// promoTags are the tags that mark a promotional offer for the hot rule.
var promoTags = []string{"discount", "gift"}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Normalize lowercases text and replaces non-word characters with spaces
// so keyword matching is punctuation-insensitive.
func Normalize(text string) string {
	return nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
}

// FindTags returns the tags whose rules match the text, in table order.
// Matching is pure substring containment over the normalized text.
func FindTags(text string) []string {
	normalized := Normalize(text)
	return lo.FilterMap(TagRules, func(rule TagRule, _ int) (string, bool) {
		matched := lo.SomeBy(rule.Keywords, func(keyword string) bool {
			return strings.Contains(normalized, strings.ToLower(keyword))
		})
		return rule.Name, matched
	})
}

// IsHot reports whether a tag set marks promotionally significant content:
// a promo tag (discount or gift) plus at least two non-promo tags.
func IsHot(tags []string) bool {
	if len(tags) < 2 {
		return false
	}
	hasPromo := lo.SomeBy(tags, func(tag string) bool {
		return lo.Contains(promoTags, tag)
	})
	others := lo.Filter(tags, func(tag string, _ int) bool {
		return !lo.Contains(promoTags, tag)
	})
	return hasPromo && len(others) >= 2
}

// Currency markers recognized after an integer amount. The bare "р"
// abbreviation must not be followed by another letter, so "руб" does not
// count twice.
var priceRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*₽`),
	regexp.MustCompile(`(?i)(\d+)\s*руб`),
	regexp.MustCompile(`(?i)(\d+)\s*р(?:[^\p{L}\p{N}]|$)`),
	regexp.MustCompile(`(?i)(\d+)\s*rub`),
}

// ExtractPrices scans the text for integer amounts with a currency marker
// and returns them in ascending order.
func ExtractPrices(text string) []int {
	var prices []int
	for _, re := range priceRes {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if amount, err := strconv.Atoi(match[1]); err == nil {
				prices = append(prices, amount)
			}
		}
	}
	sort.Ints(prices)
	return prices
}

const months = "января|февраля|марта|апреля|мая|июня|" +
	"июля|августа|сентября|октября|ноября|декабря"

// Ordered date pattern variants: "until", "from", then a bare date.
var dateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:до|по)\s+(\d{1,2}\s*(?:` + months + `))`),
	regexp.MustCompile(`(?i)(?:с|начиная с)\s+(\d{1,2}\s*(?:` + months + `))`),
	regexp.MustCompile(`(?i)(\d{1,2}\s*(?:` + months + `))`),
}

// ExtractDate returns the first "<day> <month-name>" phrase found across
// the ordered pattern variants.
func ExtractDate(text string) (string, bool) {
	for _, re := range dateRes {
		if match := re.FindStringSubmatch(text); match != nil {
			return match[1], true
		}
	}
	return "", false
}

// knownCities maps normalized aliases to canonical city names.
var knownCities = []struct {
	alias     string
	canonical string
}{
	{"москва", "Москва"},
	{"санкт-петербург", "Санкт-Петербург"},
	{"спб", "Санкт-Петербург"},
	{"питер", "Санкт-Петербург"},
}

// ExtractCity finds a known city mention in the text, defaulting to Москва.
func ExtractCity(text string) string {
	lower := strings.ToLower(text)
	for _, city := range knownCities {
		if strings.Contains(lower, city.alias) {
			return city.canonical
		}
	}
	return "Москва"
}

package scraper

import (
	"fmt"
	"strings"
)

type detailFixture struct {
	attrs    [][2]string
	title    string
	postID   string
	price    string
	date     string
	sold     bool
	whatsapp string
	noTitle  bool
}

func carAttrs() [][2]string {
	return [][2]string{
		{"Кузов:", "Седан"},
		{"Год выпуска:", "2015"},
		{"Цвет:", "Белый"},
		{"Привод:", "Передний"},
		{"Объем двигателя:", "2.5 л"},
		{"Состояние:", "С пробегом"},
		{"Вид топлива:", "Бензин"},
		{"Растаможен в РТ:", "Да"},
		{"Коробка передач:", "Автомат"},
	}
}

func defaultDetail() detailFixture {
	return detailFixture{
		attrs:    carAttrs(),
		title:    "\n   Toyota Camry, 2015 \n",
		postID:   "Номер объявления: 123456",
		price:    "150 000 c.",
		date:     "Опубликовано: 01.03.2024 09:15",
		whatsapp: "https://api.whatsapp.com/send?phone=992901234567&text=hi",
	}
}

func (f detailFixture) html() string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"announcement\">")
	if !f.noTitle {
		fmt.Fprintf(&b, `<h1 class="title-announcement">%s</h1>`, f.title)
	}
	fmt.Fprintf(&b, `<span class="number-announcement">%s</span>`, f.postID)
	fmt.Fprintf(&b, `<div class="announcement-price__cost">%s</div>`, f.price)
	fmt.Fprintf(&b, `<span class="date-meta">%s</span>`, f.date)
	b.WriteString(`<span class="counter-views">Просмотров: 1204</span>`)
	b.WriteString(`<a class="author-name js-online-user" href="/user/77/">  Алишер </a>`)
	b.WriteString(`<a class="other-announcement-author" href="/user/77/">Все объявления</a>`)
	b.WriteString(`<div class="announcement__location"> Душанбе </div>`)
	b.WriteString("<div class=\"js-description\">Состояние отличное.\nТорг уместен.</div>")
	if f.whatsapp != "" {
		fmt.Fprintf(&b, `<a class="btn-author announcement-text-message__button _whatsapp js-messenger" href="%s">WhatsApp</a>`, f.whatsapp)
	}
	if f.sold {
		b.WriteString(`<div class="phone-author phone-author--sold phone-author--toggled">Продано</div>`)
	}
	b.WriteString(`<ul class="chars-column">`)
	for _, a := range f.attrs {
		fmt.Fprintf(&b, `<li><span class="key-chars">%s</span><span class="value-chars">%s</span></li>`, a[0], a[1])
	}
	b.WriteString("</ul></div></body></html>")
	return b.String()
}

func indexPage(lastPage int, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"list\">")
	for _, href := range hrefs {
		fmt.Fprintf(&b, `<div class="js-item-listing"><a href="%s">listing</a><a href="/other">x</a></div>`, href)
	}
	b.WriteString(`</div><div class="pagination">`)
	for p := 1; p <= lastPage; p++ {
		fmt.Fprintf(&b, `<a class="page-number" href="?page=%d">%d</a>`, p, p)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

package shop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/riky-24/bot-medsos-sub000/core/telegram/callbacks"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/format"
	tghelpers "github.com/riky-24/bot-medsos-sub000/core/telegram/helpers"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/keyboard"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/state"
	"github.com/riky-24/bot-medsos-sub000/core/telegram/ui"
	"github.com/riky-24/bot-medsos-sub000/internal/catalog"
	"github.com/riky-24/bot-medsos-sub000/internal/repo"
	"github.com/riky-24/bot-medsos-sub000/internal/tripay"
)

// formatRupiah renders 23450 as "Rp23.450".
func formatRupiah(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	if len(s) > 3 {
		var b strings.Builder
		head := len(s) % 3
		if head > 0 {
			b.WriteString(s[:head])
		}
		for i := head; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	return "Rp" + sign + s
}

func statusLabel(status string) string {
	switch status {
	case tripay.StatusPaid:
		return "✅ Lunas"
	case tripay.StatusExpired:
		return "⌛️ Kedaluwarsa"
	case tripay.StatusFailed:
		return "❌ Gagal"
	default:
		return "⏳ Menunggu pembayaran"
	}
}

func statusIcon(status string) string {
	switch status {
	case tripay.StatusPaid:
		return "✅"
	case tripay.StatusExpired:
		return "⌛️"
	case tripay.StatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

// idLine renders a player id with its optional zone, e.g. "`123` (8765)".
func idLine(playerID, zoneID string) string {
	if zoneID == "" {
		return "`" + playerID + "`"
	}
	return fmt.Sprintf("`%s` (%s)", playerID, zoneID)
}

// pageBounds clamps page into the valid range and returns the slice
// bounds for that page plus the page count and the clamped page.
func pageBounds(total, page, size int) (start, end, pages, clamped int) {
	if size < 1 {
		size = 1
	}
	pages = (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start = page * size
	end = start + size
	if end > total {
		end = total
	}
	return start, end, pages, page
}

func chunkButtons(btns []keyboard.InlineBtn, perRow int) [][]keyboard.InlineBtn {
	if perRow < 1 {
		perRow = 1
	}
	var rows [][]keyboard.InlineBtn
	for i := 0; i < len(btns); i += perRow {
		end := i + perRow
		if end > len(btns) {
			end = len(btns)
		}
		rows = append(rows, btns[i:end])
	}
	return rows
}

// navRow builds the pager row. fixedArgs precede the page number in the
// callback data, so "product:page:<game>:<n>" and "game:page:<n>" share
// one builder.
func navRow(ns, action string, page, pages int, fixedArgs ...string) []keyboard.InlineBtn {
	var row []keyboard.InlineBtn
	if page > 0 {
		args := append(append([]string{}, fixedArgs...), strconv.Itoa(page-1))
		row = append(row, keyboard.InlineBtn{Text: "⬅️ Sebelumnya", Data: callbacks.Data(ns, action, args...)})
	}
	if page < pages-1 {
		args := append(append([]string{}, fixedArgs...), strconv.Itoa(page+1))
		row = append(row, keyboard.InlineBtn{Text: "Berikutnya ➡️", Data: callbacks.Data(ns, action, args...)})
	}
	return row
}

func menuBtn() keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: "🏠 Menu Utama", Data: callbacks.Data("menu", "main")}
}

func gamesBtn(label string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: label, Data: callbacks.Data("menu", "games")}
}

func cancelRow() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{keyboard.CancelBtn(callbacks.Data("order", "cancel"))}
}

func mainMenuScreen(storeName string) ui.Screen {
	text := fmt.Sprintf(
		"*%s* 🎮\n\n"+
			"Top up game favoritmu, bayar lewat QRIS,\n"+
			"virtual account, atau gerai retail.\n\n"+
			"Pilih menu di bawah untuk mulai.",
		format.EscapeV1(storeName),
	)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{gamesBtn("🎮 Top Up Game")},
		[]keyboard.InlineBtn{
			{Text: "📦 Cek Status", Data: callbacks.Data("menu", "status")},
			{Text: "❓ Bantuan", Data: callbacks.Data("menu", "help")},
		},
	)
	return ui.Screen{Text: text, Markup: markup}
}

func helpScreen() ui.Screen {
	text := "*Bantuan* ❓\n\n" +
		"Cara order:\n" +
		"1. Pilih game dan nominal top up.\n" +
		"2. Kirim ID player kamu (contoh: `123456789 (1234)`).\n" +
		"3. Konfirmasi, pilih metode bayar, selesai!\n\n" +
		"Perintah:\n" +
		"/start — menu utama\n" +
		"/status — cek transaksi terakhir\n" +
		"/cancel — batalkan pesanan berjalan\n\n" +
		"Pembayaran dicek otomatis. Top up masuk\n" +
		"beberapa saat setelah tagihan lunas."
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{gamesBtn("🎮 Mulai Top Up")},
		[]keyboard.InlineBtn{menuBtn()},
	)
	return ui.Screen{Text: text, Markup: markup}
}

func gamesScreen(games []catalog.Game, page, size int) ui.Screen {
	start, end, pages, page := pageBounds(len(games), page, size)

	btns := make([]keyboard.InlineBtn, 0, end-start)
	for _, game := range games[start:end] {
		btns = append(btns, keyboard.InlineBtn{
			Text: game.Name,
			Data: callbacks.Data("game", "pick", game.Code),
		})
	}
	rows := chunkButtons(btns, 2)
	if nav := navRow("game", "page", page, pages); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []keyboard.InlineBtn{menuBtn()})

	text := fmt.Sprintf(
		"*Pilih Game* 🎮\n\nHalaman %d/%d — ketuk game yang mau di-top up.",
		page+1, pages,
	)
	return ui.Screen{Text: text, Markup: keyboard.InlineButtonsRows(rows...)}
}

func productsScreen(game catalog.Game, items []catalog.Item, page, size int) ui.Screen {
	start, end, pages, page := pageBounds(len(items), page, size)

	btns := make([]keyboard.InlineBtn, 0, end-start)
	for _, item := range items[start:end] {
		btns = append(btns, keyboard.InlineBtn{
			Text: fmt.Sprintf("%s • %s", item.Name, formatRupiah(item.Price)),
			Data: callbacks.Data("product", "pick", item.Code),
		})
	}
	rows := chunkButtons(btns, 1)
	if nav := navRow("product", "page", page, pages, game.Code); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []keyboard.InlineBtn{
		{Text: "⬅️ Daftar Game", Data: callbacks.Data("menu", "games")},
		menuBtn(),
	})

	text := fmt.Sprintf(
		"*%s*\n\nPilih nominal top up. Halaman %d/%d.",
		format.EscapeV1(game.Name), page+1, pages,
	)
	return ui.Screen{Text: text, Markup: keyboard.InlineButtonsRows(rows...)}
}

// askIDScreen prompts for the player id after a product was picked.
func askIDScreen(sess state.Session, example string) ui.Screen {
	if example == "" {
		example = "123456789"
	}
	text := fmt.Sprintf(
		"*%s*\n📦 %s\n💰 %s\n\n"+
			"Sekarang kirim ID player kamu lewat chat.\n"+
			"Contoh: `%s`",
		format.EscapeV1(sess.GameName),
		format.EscapeV1(sess.Item),
		formatRupiah(sess.Price),
		example,
	)
	return ui.Screen{Text: text, Markup: keyboard.InlineButtonsRows(cancelRow())}
}

func formatErrorScreen(sess state.Session, example string) ui.Screen {
	if example == "" {
		example = "123456789"
	}
	text := fmt.Sprintf(
		"⚠️ *Format ID salah*\n\n"+
			"Untuk %s, kirim ID seperti ini:\n`%s`\n\n"+
			"Coba kirim ulang ya.",
		format.EscapeV1(sess.GameName), example,
	)
	return ui.Screen{Text: text, Markup: keyboard.InlineButtonsRows(cancelRow())}
}

func playerNotFoundScreen(sess state.Session, playerID, zoneID string, remaining int) ui.Screen {
	var b strings.Builder
	fmt.Fprintf(&b,
		"❌ *ID tidak ditemukan*\n\n"+
			"ID %s tidak dikenal di %s.\n"+
			"Periksa lagi lalu kirim ulang.",
		idLine(playerID, zoneID), format.EscapeV1(sess.GameName),
	)
	if remaining >= 0 {
		fmt.Fprintf(&b, "\n\nSisa percobaan validasi: %d", remaining)
	}
	return ui.Screen{Text: b.String(), Markup: keyboard.InlineButtonsRows(cancelRow())}
}

func validatorTroubleScreen(sess state.Session) ui.Screen {
	text := fmt.Sprintf(
		"⚠️ *Validasi sedang gangguan*\n\n"+
			"Pengecekan ID %s belum bisa dilakukan.\n"+
			"Kirim ulang ID untuk mencoba lagi, atau batalkan.",
		format.EscapeV1(sess.GameName),
	)
	return ui.Screen{Text: text, Markup: keyboard.InlineButtonsRows(cancelRow())}
}

func confirmIDScreen(sess state.Session) ui.Screen {
	var b strings.Builder
	b.WriteString("*Konfirmasi Pesanan*\n\n")
	fmt.Fprintf(&b, "🎮 Game: %s\n", format.EscapeV1(sess.GameName))
	fmt.Fprintf(&b, "📦 Item: %s\n", format.EscapeV1(sess.Item))
	fmt.Fprintf(&b, "💰 Harga: %s\n", formatRupiah(sess.Price))
	fmt.Fprintf(&b, "🆔 ID: %s\n", idLine(sess.PlayerID, sess.ZoneID))
	if sess.Nickname != "" {
		fmt.Fprintf(&b, "👤 Nickname: *%s*\n", format.EscapeV1(sess.Nickname))
	}
	if !sess.Verified {
		b.WriteString("\n⚠️ ID tidak diverifikasi otomatis, pastikan sudah benar.\n")
	}
	b.WriteString("\nLanjut ke pembayaran?")

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Ya, Benar", Data: callbacks.Data("order", "confirm")},
		keyboard.CancelBtn(callbacks.Data("order", "cancel")),
	})
	return ui.Screen{Text: b.String(), Markup: markup}
}

func channelsScreen(sess state.Session, channels []tripay.Channel) ui.Screen {
	text := fmt.Sprintf(
		"*Pilih Metode Pembayaran*\n\n"+
			"📦 %s — %s\n"+
			"🆔 %s\n\n"+
			"Biaya admin mengikuti metode yang dipilih.",
		format.EscapeV1(sess.Item),
		formatRupiah(sess.Price),
		idLine(sess.PlayerID, sess.ZoneID),
	)

	btns := make([]keyboard.InlineBtn, 0, len(channels))
	for _, ch := range channels {
		btns = append(btns, keyboard.InlineBtn{
			Text: ch.Name,
			Data: callbacks.Data("pay", "channel", ch.Code),
		})
	}
	rows := chunkButtons(btns, 2)
	rows = append(rows, cancelRow())
	return ui.Screen{Text: text, Markup: keyboard.InlineButtonsRows(rows...)}
}

func checkoutScreen(sess state.Session) ui.Screen {
	var b strings.Builder
	b.WriteString("*Rincian Pembayaran*\n\n")
	fmt.Fprintf(&b, "📦 %s\n", format.EscapeV1(sess.Item))
	fmt.Fprintf(&b, "🆔 %s\n", idLine(sess.PlayerID, sess.ZoneID))
	fmt.Fprintf(&b, "💳 Metode: %s\n\n", format.EscapeV1(sess.ChannelName))
	fmt.Fprintf(&b, "Harga: %s\n", formatRupiah(sess.Price))
	fmt.Fprintf(&b, "Biaya admin: %s\n", formatRupiah(sess.Fee))
	fmt.Fprintf(&b, "*Total: %s*", formatRupiah(sess.Total))

	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "💳 Bayar Sekarang", Data: callbacks.Data("pay", "commit")}},
		[]keyboard.InlineBtn{{Text: "🔁 Ganti Metode", Data: callbacks.Data("order", "confirm")}},
		cancelRow(),
	)
	return ui.Screen{Text: b.String(), Markup: markup}
}

// paymentScreen renders freshly created payment instructions. QRIS
// invoices show the QR image as a photo; code-based channels show the
// pay code inline.
func paymentScreen(trx *repo.Transaction, inv *tripay.Invoice) ui.Screen {
	var b strings.Builder
	b.WriteString("⏳ *Menunggu Pembayaran*\n\n")
	fmt.Fprintf(&b, "📦 %s\n", format.EscapeV1(trx.ItemName))
	fmt.Fprintf(&b, "🧾 Ref: `%s`\n", trx.MerchantRef)
	fmt.Fprintf(&b, "💳 %s\n", format.EscapeV1(trx.ChannelName))
	fmt.Fprintf(&b, "*Total: %s*\n", formatRupiah(trx.TotalAmount))
	if inv.PayCode != "" {
		fmt.Fprintf(&b, "🔢 Kode bayar: `%s`\n", inv.PayCode)
	}
	if trx.ExpiredAt != nil {
		fmt.Fprintf(&b, "⏰ Bayar sebelum: %s\n", tghelpers.FormatWIB(*trx.ExpiredAt))
	}
	if inv.QRURL != "" {
		b.WriteString("\nScan QR di atas dengan aplikasi pembayaranmu.")
	}
	b.WriteString("\nStatus diperbarui otomatis setelah pembayaran masuk.")

	var rows [][]keyboard.InlineBtn
	if inv.CheckoutURL != "" {
		rows = append(rows, []keyboard.InlineBtn{
			{Text: "🔗 Buka Halaman Pembayaran", URL: inv.CheckoutURL},
		})
	}
	rows = append(rows,
		[]keyboard.InlineBtn{{Text: "🔄 Cek Status", Data: callbacks.Data("trx", "refresh", trx.MerchantRef)}},
		[]keyboard.InlineBtn{menuBtn()},
	)

	return ui.Screen{
		Text:   b.String(),
		Markup: keyboard.InlineButtonsRows(rows...),
		Photo:  inv.QRURL,
	}
}

func trxDetailScreen(trx *repo.Transaction) ui.Screen {
	var b strings.Builder
	b.WriteString("*Detail Transaksi*\n\n")
	fmt.Fprintf(&b, "🧾 Ref: `%s`\n", trx.MerchantRef)
	fmt.Fprintf(&b, "📦 %s (%s)\n", format.EscapeV1(trx.ItemName), format.EscapeV1(trx.GameName))
	fmt.Fprintf(&b, "🆔 %s\n", idLine(trx.PlayerID, format.DerefString(trx.ZoneID, "")))
	fmt.Fprintf(&b, "💳 %s\n", format.EscapeV1(trx.ChannelName))
	fmt.Fprintf(&b, "*Total: %s*\n", formatRupiah(trx.TotalAmount))
	fmt.Fprintf(&b, "Status: %s\n", statusLabel(trx.Status))

	switch trx.Status {
	case tripay.StatusPaid:
		if trx.PaidAt != nil {
			fmt.Fprintf(&b, "✅ Dibayar: %s\n", tghelpers.FormatWIB(*trx.PaidAt))
		}
		if sn := format.DerefString(trx.SerialNumber, ""); sn != "" {
			fmt.Fprintf(&b, "📄 SN: `%s`\n", sn)
		}
	case tripay.StatusUnpaid:
		if code := format.DerefString(trx.PayCode, ""); code != "" {
			fmt.Fprintf(&b, "🔢 Kode bayar: `%s`\n", code)
		}
		if trx.ExpiredAt != nil {
			fmt.Fprintf(&b, "⏰ Bayar sebelum: %s\n", tghelpers.FormatWIB(*trx.ExpiredAt))
		}
	}

	var rows [][]keyboard.InlineBtn
	if trx.Status == tripay.StatusUnpaid {
		if url := format.DerefString(trx.PayURL, ""); url != "" {
			rows = append(rows, []keyboard.InlineBtn{
				{Text: "🔗 Buka Halaman Pembayaran", URL: url},
			})
		}
	}
	rows = append(rows,
		[]keyboard.InlineBtn{{Text: "🔄 Refresh Status", Data: callbacks.Data("trx", "refresh", trx.MerchantRef)}},
		[]keyboard.InlineBtn{menuBtn()},
	)
	return ui.Screen{Text: b.String(), Markup: keyboard.InlineButtonsRows(rows...)}
}

func statusListScreen(trxs []repo.Transaction) ui.Screen {
	var b strings.Builder
	b.WriteString("*Transaksi Terakhir*\n\n")
	for i, trx := range trxs {
		fmt.Fprintf(&b, "%d. %s %s — %s\n    `%s`\n",
			i+1,
			statusIcon(trx.Status),
			format.EscapeV1(trx.ItemName),
			formatRupiah(trx.TotalAmount),
			trx.MerchantRef,
		)
	}
	b.WriteString("\nKetuk transaksi untuk detail dan refresh status.")

	rows := make([][]keyboard.InlineBtn, 0, len(trxs)+1)
	for _, trx := range trxs {
		rows = append(rows, []keyboard.InlineBtn{{
			Text: fmt.Sprintf("%s %s", statusIcon(trx.Status), trx.ItemName),
			Data: callbacks.Data("trx", "refresh", trx.MerchantRef),
		}})
	}
	rows = append(rows, []keyboard.InlineBtn{menuBtn()})
	return ui.Screen{Text: b.String(), Markup: keyboard.InlineButtonsRows(rows...)}
}

func emptyStatusScreen() ui.Screen {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{gamesBtn("🎮 Mulai Top Up")},
		[]keyboard.InlineBtn{menuBtn()},
	)
	return ui.Screen{
		Text:   "Belum ada transaksi.\n\nYuk mulai top up pertamamu!",
		Markup: markup,
	}
}

func sessionExpiredScreen() ui.Screen {
	return ui.Screen{
		Text:   "⌛️ *Sesi sudah berakhir*\n\nMulai lagi dari menu utama ya.",
		Markup: keyboard.InlineButtonsRows([]keyboard.InlineBtn{menuBtn()}),
	}
}

func cancelledScreen() ui.Screen {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{gamesBtn("🎮 Pilih Game Lain")},
		[]keyboard.InlineBtn{menuBtn()},
	)
	return ui.Screen{
		Text:   "✅ Pesanan dibatalkan.\n\nKembali kapan saja lewat menu.",
		Markup: markup,
	}
}

// catalogMissScreen handles a button whose target no longer exists in
// the catalog.
func catalogMissScreen(what string) ui.Screen {
	text := fmt.Sprintf(
		"😕 *%s tidak ditemukan*\n\n"+
			"Katalog mungkin baru berubah. Cek daftar terbaru ya.",
		what,
	)
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{gamesBtn("🎮 Daftar Game")},
		[]keyboard.InlineBtn{menuBtn()},
	)
	return ui.Screen{Text: text, Markup: markup}
}

func troubleScreen(body string) ui.Screen {
	return ui.Screen{
		Text:   "⚠️ *Ada gangguan*\n\n" + body,
		Markup: keyboard.InlineButtonsRows([]keyboard.InlineBtn{menuBtn()}),
	}
}

// staleButtonScreen answers buttons whose data no longer routes
// anywhere, usually a keyboard from before a bot update.
func staleButtonScreen() ui.Screen {
	return ui.Screen{
		Text:   "🤔 Tombol ini sudah tidak berlaku.\n\nLanjut dari menu utama ya.",
		Markup: keyboard.InlineButtonsRows([]keyboard.InlineBtn{menuBtn()}),
	}
}

// notifyScreen announces a terminal payment status. It always arrives as
// a fresh message so the user gets an unread notification even when the
// old bubble was already scrolled away.
func notifyScreen(trx *repo.Transaction) ui.Screen {
	var s ui.Screen
	switch trx.Status {
	case tripay.StatusPaid:
		var b strings.Builder
		b.WriteString("🎉 *Pembayaran Diterima!*\n\n")
		fmt.Fprintf(&b, "📦 %s\n", format.EscapeV1(trx.ItemName))
		fmt.Fprintf(&b, "🆔 %s\n", idLine(trx.PlayerID, format.DerefString(trx.ZoneID, "")))
		fmt.Fprintf(&b, "💰 %s\n", formatRupiah(trx.TotalAmount))
		if trx.PaidAt != nil {
			fmt.Fprintf(&b, "✅ Dibayar: %s\n", tghelpers.FormatWIB(*trx.PaidAt))
		}
		if sn := format.DerefString(trx.SerialNumber, ""); sn != "" {
			fmt.Fprintf(&b, "📄 SN: `%s`\n", sn)
		}
		b.WriteString("\nTop up sedang diproses otomatis.\nCek /status untuk perkembangannya.")
		s = ui.Screen{
			Text:   b.String(),
			Markup: keyboard.InlineButtonsRows([]keyboard.InlineBtn{menuBtn()}),
		}
	case tripay.StatusExpired:
		s = ui.Screen{
			Text: fmt.Sprintf(
				"⌛️ *Pembayaran Kedaluwarsa*\n\n"+
					"Tagihan `%s` sudah lewat batas waktu.\n"+
					"Belum jadi bayar? Order ulang kapan saja.",
				trx.MerchantRef,
			),
			Markup: keyboard.InlineButtonsRows(
				[]keyboard.InlineBtn{gamesBtn("🎮 Order Ulang")},
				[]keyboard.InlineBtn{menuBtn()},
			),
		}
	default:
		s = ui.Screen{
			Text: fmt.Sprintf(
				"❌ *Pembayaran Gagal*\n\n"+
					"Tagihan `%s` gagal diproses di sisi gateway.\n"+
					"Dana yang sempat terpotong akan dikembalikan.",
				trx.MerchantRef,
			),
			Markup: keyboard.InlineButtonsRows([]keyboard.InlineBtn{menuBtn()}),
		}
	}
	s.ForceNew = true
	return s
}

package bot

import (
	"fmt"
	"strconv"
	"strings"

	"fuelbot/internal/ledger"
	"fuelbot/internal/parse"
	"fuelbot/internal/record"
)

// Keyboard button labels. Kept byte-identical to the labels existing users
// already have pinned in their chats, so exact-match routing keeps working.
const (
	ButtonPurchase        = "🟢 Закупка топлива"
	ButtonVehicleRefuel   = "🔵 Заправка авто"
	ButtonGeneratorRefuel = "🟡 Заправка генератора"
	ButtonGeneratorInfo   = "⚡ Генератор"
	ButtonBalance         = "📊 Остатки"
	ButtonHistory         = "📈 История"
	ButtonTemplates       = "📋 Шаблоны"
)

// cancelTokens abort the current session, matched case-insensitively before
// any other handling.
var cancelTokens = []string{"отмена", "скасувати", "cancel", "/cancel"}

func isCancel(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, tok := range cancelTokens {
		if t == tok {
			return true
		}
	}
	return false
}

const (
	replyCanceled = "❌ Операцію скасовано."

	replyMissingPhoto = "⚠️ Помилка: Фото чека обов'язкове для всіх операцій.\n" +
		"Спробуйте знову."

	replyWriteFailed = "⚠️ Помилка при збереженні даних. " +
		"Спробуйте ще раз або зверніться до адміністратора."

	replyReadFailed = "⚠️ Помилка при отриманні даних. " +
		"Спробуйте ще раз або зверніться до адміністратора."

	replyUnrecognized = "⚠️ Не вдалося розпізнати повідомлення. " +
		"Використайте /templates для перегляду правильних форматів."

	promptVehicleID = "🚗 Введіть номер автомобіля (наприклад: 5513):\n\n" +
		"💡 Для скасування напишіть 'отмена'"

	promptGeneratorID = "⚡ Введіть номер генератора (наприклад: 5513):\n\n" +
		"💡 Для скасування напишіть 'отмена'"

	usageBalance   = "⚠️ Укажіть номер автомобіля. Приклад: /balance 5513"
	usageGenerator = "⚠️ Укажіть номер генератора. Приклад: /generator 5513"
	usageHistory   = "⚠️ Укажіть номер. Приклад: /history 5513"
)

const templatesReply = `📑 Шаблони введення даних:

1️⃣ Закупка палива:
1. Натисніть кнопку "🟢 Закупка топлива"
2. Введіть номер авто (наприклад: 5513)
3. Введіть об'єм та ціну у форматі:
   200 літрів по 58 грн
4. Додайте фото чека до повідомлення

2️⃣ Заправка автомобіля:
1. Натисніть кнопку "🔵 Заправка авто"
2. Введіть номер авто (наприклад: 5513)
3. Введіть об'єм та пробіг у форматі:
   30 літрів. Пробіг: 125000 км
4. Додайте фото чека до повідомлення

3️⃣ Заправка генератора:
1. Натисніть кнопку "🟡 Заправка генератора"
2. Введіть номер генератора (наприклад: 5513)
3. Введіть об'єм, ціну та моточаси у форматі:
   10 літрів, ціна 60 грн, моточаси: 255
4. Додайте фото чека до повідомлення

❗️ Важливо: Фото чека обов'язкове для всіх операцій!
💡 Для скасування операції напишіть "отмена"`

func welcomeReply(vehicles, generators []string) string {
	var b strings.Builder
	b.WriteString("🛠 Вітаємо в боті обліку палива!\n\n")
	b.WriteString("Виберіть дію кнопками нижче або використайте команди:\n\n")
	b.WriteString("📋 Команди:\n")
	b.WriteString("/balance [номер] - залишок палива\n")
	b.WriteString("/generator [номер] - інформація по генератору\n")
	b.WriteString("/history [номер] - останні операції\n")
	b.WriteString("/templates - приклади повідомлень\n\n")
	b.WriteString("🚗 Доступні авто:\n")
	for _, v := range vehicles {
		fmt.Fprintf(&b, "🚗 Авто %s\n", v)
	}
	b.WriteString("\n⚡ Доступні генератори:\n")
	for _, g := range generators {
		fmt.Fprintf(&b, "⚡ Генератор %s\n", g)
	}
	b.WriteString("\nНатисніть кнопку для швидкого введення даних!")
	return b.String()
}

func detailsPrompt(example string) string {
	return "⛽ Введіть дані у форматі:\n" + example + "\n\n" +
		"📸 Також додайте фото чека разом з повідомленням"
}

func formatErrorReply(example string) string {
	return "⚠️ Помилка: Неправильний формат.\nПриклад: " + example
}

func constraintErrorReply(msg string) string {
	return "⚠️ Помилка: " + msg
}

func unknownVehicleReply(id string, known []string) string {
	return fmt.Sprintf("⚠️ Помилка: Номер автомобіля %s не підтримується.\n"+
		"Доступні номери: %s", id, strings.Join(known, ", "))
}

func unknownGeneratorReply(id string, known []string) string {
	return fmt.Sprintf("⚠️ Помилка: Номер генератора %s не підтримується.\n"+
		"Доступні номери: %s", id, strings.Join(known, ", "))
}

func purchaseConfirmation(p parse.Purchase, assetID string) string {
	return fmt.Sprintf("✅ Прийнято! %s літрів по %s грн додано на склад авто %s з фото чека.\n"+
		"💰 Загальна вартість: %s грн",
		fmtNum(p.Volume), fmtNum(p.UnitPrice), assetID, fmtNum(p.TotalCost()))
}

// vehicleRefuelConfirmation reads the balance back after the append. A nil
// balance means the read-back failed and the line is omitted.
func vehicleRefuelConfirmation(r parse.VehicleRefuel, balance *float64) string {
	msg := fmt.Sprintf("✅ Заправка %s л записана з фото чека.\n"+
		"📏 Пробіг: %d км", fmtNum(r.Volume), r.Odometer)
	if balance != nil {
		msg += fmt.Sprintf("\n📊 Залишок на складі: %.1f л", *balance)
	}
	return msg
}

func generatorRefuelConfirmation(r parse.GeneratorRefuel, assetID string) string {
	return fmt.Sprintf("✅ Записано: Генератор %s з фото чека\n"+
		"⛽ Об'єм: %s л\n"+
		"💰 Ціна: %s грн/л\n"+
		"💵 Загальна вартість: %s грн\n"+
		"🕐 Моточаси: %d",
		assetID, fmtNum(r.Volume), fmtNum(r.UnitPrice), fmtNum(r.TotalCost()), r.EngineHours)
}

func noVehicleDataReply(id string) string {
	return fmt.Sprintf("📊 Немає даних по автомобілю %s", id)
}

func noGeneratorDataReply(id string) string {
	return fmt.Sprintf("📊 Немає даних по генератору %s", id)
}

func balanceReply(id string, s ledger.VehicleStats) string {
	return fmt.Sprintf("📊 Статистика по автомобілю %s:\n\n"+
		"💰 Закуплено: %.1f л\n"+
		"⛽ Витрачено: %.1f л\n"+
		"📈 Залишок: %.1f л\n"+
		"💵 Середня ціна: %.2f грн/л\n"+
		"📏 Останній пробіг: %d км",
		id, s.Purchased, s.Consumed, s.Balance, s.AvgPrice, s.LastOdometer)
}

func generatorInfoReply(id string, s ledger.GeneratorStats, last [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡ Статистика по генератору %s:\n\n", id)
	b.WriteString("📊 Загальна статистика:\n")
	fmt.Fprintf(&b, "⛽ Загальний об'єм: %.1f л\n", s.TotalVolume)
	fmt.Fprintf(&b, "💰 Загальна вартість: %.2f грн\n", s.TotalCost)
	fmt.Fprintf(&b, "🕐 Останні моточаси: %d\n\n", s.LastEngineHours)
	b.WriteString("📈 Останні 5 заправок:\n")
	for _, row := range last {
		fmt.Fprintf(&b, "⛽ Об'єм: %s л\n", cell(row, record.GeneratorColVolume))
		fmt.Fprintf(&b, "💰 Ціна: %s грн/л\n", cell(row, record.GeneratorColUnitPrice))
		fmt.Fprintf(&b, "🕐 Моточаси: %s\n", cell(row, record.GeneratorColHours))
		fmt.Fprintf(&b, "📅 %s\n---\n", cell(row, record.GeneratorColDate))
	}
	return b.String()
}

func vehicleHistoryReply(id string, last [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Останні 5 операцій по автомобілю %s:\n\n", id)
	for _, row := range last {
		if cell(row, record.VehicleColKind) == record.KindRefuel {
			fmt.Fprintf(&b, "⛽ Заправка: %s л\n", cell(row, record.VehicleColVolume))
			fmt.Fprintf(&b, "📏 Пробіг: %s км\n", cell(row, record.VehicleColOdometer))
		} else {
			fmt.Fprintf(&b, "🛒 Закупівля: %s л\n", cell(row, record.VehicleColVolume))
			fmt.Fprintf(&b, "💰 Ціна: %s грн/л\n", cell(row, record.VehicleColUnitPrice))
		}
		fmt.Fprintf(&b, "📅 %s\n---\n", cell(row, record.VehicleColDate))
	}
	return b.String()
}

func generatorHistoryReply(id string, last [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Останні 5 заправок по генератору %s:\n\n", id)
	for _, row := range last {
		fmt.Fprintf(&b, "⛽ Об'єм: %s л\n", cell(row, record.GeneratorColVolume))
		fmt.Fprintf(&b, "💰 Ціна: %s грн/л\n", cell(row, record.GeneratorColUnitPrice))
		fmt.Fprintf(&b, "🕐 Моточаси: %s\n", cell(row, record.GeneratorColHours))
		fmt.Fprintf(&b, "📅 %s\n---\n", cell(row, record.GeneratorColDate))
	}
	return b.String()
}

func cell(row []string, col int) string {
	if col >= len(row) || strings.TrimSpace(row[col]) == "" {
		return "н/д"
	}
	return row[col]
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

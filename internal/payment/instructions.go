package payment

import "strings"

// Payment methods as the processor reports them in callbacks.
const (
	MethodPayCard     = "paycard"
	MethodCard        = "cc"
	MethodOrangeMoney = "orange_money"
	MethodMTNMoMo     = "mtn_momo"
)

// MethodLabel returns the customer-facing name of a payment method.
func MethodLabel(method string) string {
	switch method {
	case MethodPayCard:
		return "PAYCARD"
	case MethodCard:
		return "Carte bancaire"
	case MethodOrangeMoney:
		return "Orange Money"
	case MethodMTNMoMo:
		return "MTN Mobile Money"
	default:
		return method
	}
}

var InstructionMap = map[string][]string{
	MethodPayCard: {
		"Connectez-vous à votre compte PayCard",
		"Confirmez le paiement de {{amount}} GNF",
		"Conservez le reçu de la transaction",
	},

	MethodCard: {
		"Saisissez les informations de votre carte (numéro, date d'expiration, CVV)",
		"Vérifiez que les informations sont correctes",
		"Validez le paiement de {{amount}} GNF via 3D Secure si demandé",
	},

	MethodOrangeMoney: {
		"Composez #144# depuis votre téléphone Orange",
		"Choisissez Paiement marchand",
		"Confirmez le paiement de {{amount}} GNF avec votre code secret",
		"Conservez le SMS de confirmation",
	},

	MethodMTNMoMo: {
		"Composez *440# depuis votre téléphone MTN",
		"Choisissez Paiement",
		"Confirmez le paiement de {{amount}} GNF avec votre code PIN",
		"Conservez le SMS de confirmation",
	},
}

func GetInstructions(method string) []string {
	if steps, ok := InstructionMap[method]; ok {
		return steps
	}

	return []string{
		"Suivez les instructions de paiement affichées sur la page ChapChapPay",
	}
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}

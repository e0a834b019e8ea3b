// Package cfop resolve códigos CFOP pra descrição legível. A tabela é
// montada uma vez, sob demanda, e nunca muda durante a vida do processo.
package cfop

import "sync"

var (
	once  sync.Once
	table map[string]string
)

// Describe devolve a descrição do CFOP, ou "" quando o código não consta
// na tabela.
func Describe(code string) string {
	once.Do(build)
	return table[code]
}

// Known informa se o código consta na tabela.
func Known(code string) bool {
	once.Do(build)
	_, ok := table[code]
	return ok
}

func build() {
	// Subconjunto dos CFOPs que aparecem nas operações atendidas; a tabela
	// oficial completa tem centenas de códigos que nunca chegam aqui.
	table = map[string]string{
		"1102": "Compra para comercialização",
		"1202": "Devolução de venda de mercadoria adquirida",
		"1403": "Compra para comercialização (ST)",
		"1411": "Devolução de venda de mercadoria (ST)",
		"1949": "Outra entrada de mercadoria não especificada",
		"2102": "Compra para comercialização (fora do estado)",
		"2202": "Devolução de venda de mercadoria (fora do estado)",
		"2403": "Compra para comercialização (ST, fora do estado)",
		"2949": "Outra entrada de mercadoria não especificada (fora do estado)",
		"5101": "Venda de produção do estabelecimento",
		"5102": "Venda de mercadoria adquirida ou recebida de terceiros",
		"5202": "Devolução de compra para comercialização",
		"5405": "Venda de mercadoria adquirida (ST)",
		"5409": "Devolução de compra para comercialização (ST)",
		"5656": "Venda de combustível ou lubrificante",
		"5929": "Lançamento efetuado em decorrência de emissão de cupom fiscal",
		"5949": "Outra saída de mercadoria não especificada",
		"6102": "Venda de mercadoria adquirida (fora do estado)",
		"6108": "Venda de mercadoria a não contribuinte (fora do estado)",
		"6949": "Outra saída de mercadoria não especificada (fora do estado)",
		"5353": "Prestação de serviço de transporte",
		"6353": "Prestação de serviço de transporte (fora do estado)",
	}
}

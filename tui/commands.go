package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a parsed slash command
type Command struct {
	Name string
	Arg  string
}

type commandEntry struct {
	name string
	desc string
}

var commands = []commandEntry{
	{"/regen", "Gerar a última resposta novamente"},
	{"/edit", "Corrigir a última resposta: /edit <texto>"},
	{"/good", "Marcar a última resposta como boa"},
	{"/bad", "Marcar a última resposta como ruim"},
	{"/pick", "Escolher o provedor de imagem: /pick <n|nome>"},
	{"/docs", "Selecionar documentos de contexto: /docs id1,id2 (vazio limpa)"},
	{"/delete", "Apagar a conversa atual"},
	{"/clear", "Começar uma nova conversa"},
	{"/help", "Mostrar esta ajuda"},
	{"/exit", "Sair"},
}

// ParseCommand splits "/name arg..." input. ok is false for plain messages.
func ParseCommand(input string) (Command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	if name == "/quit" {
		name = "/exit"
	}
	return Command{Name: name, Arg: strings.TrimSpace(arg)}, true
}

// resolvePick maps a "/pick" argument, either a 1-based position or a name,
// to one of the offered providers.
func resolvePick(arg string, offered []string) (string, error) {
	if len(offered) == 0 {
		return "", fmt.Errorf("nenhuma escolha de provedor pendente")
	}
	if arg == "" {
		return "", fmt.Errorf("uso: /pick <n|nome>")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(offered) {
			return "", fmt.Errorf("opção %d inválida, escolha de 1 a %d", n, len(offered))
		}
		return offered[n-1], nil
	}
	for _, name := range offered {
		if strings.EqualFold(name, arg) {
			return name, nil
		}
	}
	return "", fmt.Errorf("provedor desconhecido: %s", arg)
}

// parseDocIDs splits a comma separated id list; blanks are dropped
func parseDocIDs(arg string) []string {
	var ids []string
	for _, part := range strings.Split(arg, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Comandos disponíveis:")
	for _, c := range commands {
		fmt.Fprintf(&b, "\n%-8s %s", c.name, c.desc)
	}
	return b.String()
}

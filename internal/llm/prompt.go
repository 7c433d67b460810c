package llm

// ExtractionPrompt is sent alongside every unit. Field names match the JSON
// keys ParseMedications understands.
const ExtractionPrompt = `Actúa como un experto en extracción de datos farmacéuticos.

OBJETIVO: Extraer TODOS los medicamentos que aparecen en esta página del documento.

REGLAS:
- Extrae cada medicamento visible, uno por fila
- Si un dato no está presente, escribe "N/A"
- No inventes datos
- Limpia el nombre: conserva concentración y presentación, elimina el nombre comercial entre paréntesis y el laboratorio

CAMPOS:
- nombre: nombre genérico + concentración + forma farmacéutica + cantidad
- cum: código CUM de 8 a 12 dígitos, puede llevar guion (ej. 19935303-4)
- invima: registro sanitario (ej. 2023M-0002317)
- lote: identificador de fabricación
- valorUnitario: precio por unidad antes de impuestos, con el formato original
- iva: porcentaje o valor del impuesto ("0" si no aparece)
- valorTotal: precio final de la línea, con el formato original

FORMATO DE RESPUESTA:
Responde únicamente con un array JSON válido:
[{"nombre":"string","cum":"string","invima":"string","lote":"string","valorUnitario":"string","iva":"string","valorTotal":"string"}]

Si no hay medicamentos en esta página, responde: []`
